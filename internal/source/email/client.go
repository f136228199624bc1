package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mail-notifier/internal/imaputf7"
	"github.com/nhle/mail-notifier/internal/monitor"
	"github.com/nhle/mail-notifier/internal/source"
)

// Dialer opens go-imap v2 sessions to one server.
type Dialer struct {
	Server *Server

	// Interrupts, if set, can end IDLE waits early.
	Interrupts *Interrupter

	// DebugWriter receives the raw protocol exchange when set.
	DebugWriter io.Writer

	Logger *slog.Logger
}

// Dial connects, secures the connection and authenticates.
func (d *Dialer) Dial(ctx context.Context) (monitor.Session, error) {
	s, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Dialer) connect(ctx context.Context) (*session, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notices := make(chan struct{}, 1)
	options := clientOptions(notices, d.DebugWriter)
	options.TLSConfig = &tls.Config{ServerName: d.Server.TLSServerName}

	addr := d.Server.Addr()
	logger.Debug("connecting",
		"server", d.Server.Name,
		"addr", addr,
		"tls_mode", d.Server.TLSMode,
	)

	var (
		client *imapclient.Client
		err    error
	)
	switch d.Server.TLSMode {
	case TLSStartTLS:
		client, err = imapclient.DialStartTLS(addr, options)
	default:
		client, err = imapclient.DialTLS(addr, options)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	// Closing the client unblocks every pending command, which is how
	// cancellation reaches the protocol.
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })

	if err := d.authenticate(ctx, client); err != nil {
		stop()
		_ = client.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return &session{
		client:     client,
		notices:    notices,
		interrupts: d.Interrupts,
		stop:       stop,
	}, nil
}

// clientOptions builds the go-imap options. Unilateral EXISTS, EXPUNGE and
// FETCH data each leave a signal on notices without blocking the reader.
func clientOptions(notices chan<- struct{}, debug io.Writer) *imapclient.Options {
	notice := func() {
		select {
		case notices <- struct{}{}:
		default:
		}
	}

	return &imapclient.Options{
		DebugWriter: debug,
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Expunge: func(uint32) { notice() },
			Mailbox: func(data *imapclient.UnilateralDataMailbox) {
				if data.NumMessages != nil {
					notice()
				}
			},
			Fetch: func(msg *imapclient.FetchMessageData) {
				_, _ = msg.Collect()
				notice()
			},
		},
	}
}

// authenticate logs client in. Only a NO from the server is reported as an
// AuthError; token and transport failures keep their own errors.
func (d *Dialer) authenticate(ctx context.Context, client *imapclient.Client) error {
	err := d.Server.Auth.Authenticate(ctx, client)
	if err == nil {
		return nil
	}

	var imapErr *imap.Error
	if errors.As(err, &imapErr) && imapErr.Type == imap.StatusResponseTypeNo {
		return &source.AuthError{
			Server:  d.Server.Name,
			Message: fmt.Sprintf("authentication failed for %s", d.Server.Auth.Identity()),
			Err:     err,
		}
	}
	return fmt.Errorf("authenticating as %s: %w", d.Server.Auth.Identity(), err)
}

// session implements monitor.Session over an authenticated client.
//
// go-imap applies modified UTF-7 to mailbox names on its own, so names are
// handed to it decoded.
type session struct {
	client     *imapclient.Client
	notices    chan struct{}
	interrupts *Interrupter
	stop       func() bool
}

func (s *session) Capabilities(context.Context) (imap.CapSet, error) {
	return s.client.Capability().Wait()
}

func (s *session) Select(_ context.Context, mailbox imaputf7.Name) error {
	_, err := s.client.Select(mailbox.Decode(), nil).Wait()
	return err
}

func (s *session) Status(_ context.Context, mailbox imaputf7.Name, options *imap.StatusOptions) (*imap.StatusData, error) {
	return s.client.Status(mailbox.Decode(), options).Wait()
}

func (s *session) Idle(context.Context) (monitor.IdleHandle, error) {
	cmd, err := s.client.Idle()
	if err != nil {
		return nil, err
	}
	return &idleHandle{cmd: cmd, session: s}, nil
}

func (s *session) list() ([]*imap.ListData, error) {
	return s.client.List("", "*", nil).Collect()
}

func (s *session) Close() error {
	s.stop()
	if err := s.client.Logout().Wait(); err != nil {
		_ = s.client.Close()
		return err
	}
	return s.client.Close()
}

type idleHandle struct {
	cmd     *imapclient.IdleCommand
	session *session
}

func (h *idleHandle) Wait(ctx context.Context, timeout time.Duration) (monitor.IdleOutcome, error) {
	interrupted := h.session.interrupts.subscribe()
	defer h.session.interrupts.unsubscribe(interrupted)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		return monitor.IdleTimeout, nil
	case <-h.session.notices:
		return monitor.IdleNewData, nil
	case <-interrupted:
		return monitor.IdleManualInterrupt, nil
	case <-h.session.client.Closed():
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("connection closed during IDLE: %w", io.ErrUnexpectedEOF)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *idleHandle) Done() error {
	if err := h.cmd.Close(); err != nil {
		return err
	}
	return h.cmd.Wait()
}

// ListMailboxes returns the wire form of every mailbox on the server.
func ListMailboxes(ctx context.Context, d *Dialer) ([]imaputf7.Name, error) {
	s, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	data, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes: %w", err)
	}

	names := make([]imaputf7.Name, 0, len(data))
	for _, mbox := range data {
		names = append(names, imaputf7.Encode(mbox.Mailbox))
	}
	return names, nil
}

// Interrupter ends the IDLE waits of every session that shares it. The
// zero value is ready to use; a nil Interrupter never fires.
type Interrupter struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// Interrupt wakes every session currently waiting in IDLE.
func (i *Interrupter) Interrupt() {
	if i == nil {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for ch := range i.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (i *Interrupter) subscribe() chan struct{} {
	if i == nil {
		return nil
	}

	ch := make(chan struct{}, 1)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.subs == nil {
		i.subs = make(map[chan struct{}]struct{})
	}
	i.subs[ch] = struct{}{}
	return ch
}

func (i *Interrupter) unsubscribe(ch chan struct{}) {
	if i == nil {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.subs, ch)
}
