package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mail-notifier/internal/imaputf7"
)

// Session is an authenticated IMAP connection as seen by the monitor loop.
// Mailbox names always cross this boundary in their wire-safe form.
type Session interface {
	Capabilities(ctx context.Context) (imap.CapSet, error)
	Select(ctx context.Context, mailbox imaputf7.Name) error
	Status(ctx context.Context, mailbox imaputf7.Name, options *imap.StatusOptions) (*imap.StatusData, error)
	Idle(ctx context.Context) (IdleHandle, error)
	Close() error
}

// IdleHandle is a running IDLE command.
type IdleHandle interface {
	// Wait blocks until the server pushes data, the idle is interrupted
	// manually or timeout elapses.
	Wait(ctx context.Context, timeout time.Duration) (IdleOutcome, error)
	// Done ends the IDLE command.
	Done() error
}

// Dialer establishes sessions: transport, optional STARTTLS and
// authentication.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Session, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Session, error) {
	return f(ctx)
}

// IdleOutcome tells why an IDLE wait returned.
type IdleOutcome int

const (
	IdleTimeout IdleOutcome = iota
	IdleManualInterrupt
	IdleNewData
)

func (o IdleOutcome) String() string {
	switch o {
	case IdleTimeout:
		return "timeout"
	case IdleManualInterrupt:
		return "manual interrupt"
	case IdleNewData:
		return "new data"
	default:
		return fmt.Sprintf("IdleOutcome(%d)", int(o))
	}
}
