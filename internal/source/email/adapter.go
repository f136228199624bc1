package email

import (
	"context"
	"io"
	"log/slog"

	"github.com/nhle/mail-notifier/internal/monitor"
)

// Adapter runs the mailbox monitor for a Mailbox. It implements
// engine.Workload[Mailbox, monitor.Counts].
type Adapter struct {
	Interrupts  *Interrupter
	DebugWriter io.Writer
	Logger      *slog.Logger
}

// Run watches mb until the connection fails.
func (a *Adapter) Run(ctx context.Context, mb Mailbox, notify func(monitor.Counts)) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("server", mb.Server.Name)

	m := &monitor.Monitor{
		Dialer: &Dialer{
			Server:      mb.Server,
			Interrupts:  a.Interrupts,
			DebugWriter: a.DebugWriter,
			Logger:      logger,
		},
		Mailbox:     mb.Name,
		IdleTimeout: mb.IdleTimeout,
		Logger:      logger,
	}
	return m.Run(ctx, notify)
}
