package email

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nhle/mail-notifier/internal/imaputf7"
)

// TLSMode selects how the connection is secured.
type TLSMode int

const (
	// TLSImplicit negotiates TLS right after connecting (usually port 993).
	TLSImplicit TLSMode = iota
	// TLSStartTLS upgrades a plaintext connection with STARTTLS (usually
	// port 143).
	TLSStartTLS
)

func (m TLSMode) String() string {
	switch m {
	case TLSImplicit:
		return "implicit"
	case TLSStartTLS:
		return "starttls"
	default:
		return fmt.Sprintf("TLSMode(%d)", int(m))
	}
}

// DefaultPort returns the standard IMAP port for the mode.
func (m TLSMode) DefaultPort() uint16 {
	if m == TLSStartTLS {
		return 143
	}
	return 993
}

// Server holds fully resolved connection settings.
type Server struct {
	Name          string
	Host          string
	Port          uint16
	TLSMode       TLSMode
	TLSServerName string
	Auth          Authenticator
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// Mailbox is one monitoring target.
type Mailbox struct {
	Server      *Server
	Name        imaputf7.Name
	IdleTimeout time.Duration
}

// Label identifies the mailbox in logs and front ends.
func (m Mailbox) Label() string {
	return m.Server.Name + "/" + m.Name.Decode()
}
