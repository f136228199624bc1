// Package monitor watches a single IMAP mailbox with IDLE and reports its
// message counts whenever they change.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mail-notifier/internal/imaputf7"
)

var (
	// ErrIdleNotSupported is returned when the server does not advertise
	// the IDLE capability.
	ErrIdleNotSupported = errors.New("server does not support IDLE")

	// ErrMalformedStatus is returned when a STATUS reply lacks the
	// MESSAGES item.
	ErrMalformedStatus = errors.New("STATUS reply without MESSAGES")
)

// Monitor watches one mailbox.
type Monitor struct {
	Dialer      Dialer
	Mailbox     imaputf7.Name
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// Run connects, selects the mailbox and reports its counts through notify:
// once right away, then after every IDLE wake-up that changed them.
//
// Run only returns with an error. It does not retry anything itself.
func (m *Monitor) Run(ctx context.Context, notify func(Counts)) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("mailbox", m.Mailbox.String())

	session, err := m.Dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Debug("closing session", "error", err)
		}
	}()

	caps, err := session.Capabilities(ctx)
	if err != nil {
		return fmt.Errorf("querying capabilities: %w", err)
	}
	if !caps.Has(imap.CapIdle) {
		return ErrIdleNotSupported
	}

	if err := session.Select(ctx, m.Mailbox); err != nil {
		return fmt.Errorf("selecting mailbox %q: %w", m.Mailbox, err)
	}

	counts, err := m.status(ctx, session)
	if err != nil {
		return err
	}
	logger.Debug("initial counts", "total", counts.Total, "unread", counts.Unread)
	notify(counts)

	for {
		outcome, err := m.idle(ctx, session)
		if err != nil {
			return err
		}
		logger.Debug("idle returned", "outcome", outcome)

		next, err := m.status(ctx, session)
		if err != nil {
			return err
		}
		if next == counts {
			continue
		}

		logger.Debug("counts changed", "total", next.Total, "unread", next.Unread)
		counts = next
		notify(counts)
	}
}

func (m *Monitor) status(ctx context.Context, session Session) (Counts, error) {
	opts := statusOptions
	data, err := session.Status(ctx, m.Mailbox, &opts)
	if err != nil {
		return Counts{}, fmt.Errorf("querying status: %w", err)
	}

	counts, err := countsFromStatus(data)
	if err != nil {
		return Counts{}, fmt.Errorf("querying status: %w", err)
	}
	return counts, nil
}

// idle runs one IDLE cycle. Timeouts, manual interrupts and pushed data
// all end the cycle the same way.
func (m *Monitor) idle(ctx context.Context, session Session) (IdleOutcome, error) {
	handle, err := session.Idle(ctx)
	if err != nil {
		return 0, fmt.Errorf("starting idle: %w", err)
	}

	outcome, err := handle.Wait(ctx, m.IdleTimeout)
	if err != nil {
		_ = handle.Done()
		return 0, fmt.Errorf("waiting in idle: %w", err)
	}

	if err := handle.Done(); err != nil {
		return 0, fmt.Errorf("ending idle: %w", err)
	}
	return outcome, nil
}
