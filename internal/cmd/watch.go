package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-notifier/internal/credential"
	"github.com/nhle/mail-notifier/internal/engine"
	"github.com/nhle/mail-notifier/internal/monitor"
	"github.com/nhle/mail-notifier/internal/source/email"
	"github.com/nhle/mail-notifier/internal/supervisor"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch every configured mailbox and log count changes",
	Long: `Watch every configured mailbox and log its counts whenever they
change, along with connection failures and retries. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchDebugIMAP bool

func init() {
	watchCmd.Flags().BoolVar(&watchDebugIMAP, "debug-imap", false, "write the raw IMAP exchange to stderr")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mailboxes, err := newResolver(credential.Default()).Mailboxes(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bringup: %w", err)
	}

	adapter := &email.Adapter{Logger: logger}
	if watchDebugIMAP {
		adapter.DebugWriter = cmd.ErrOrStderr()
	}

	updates := make(chan engine.Update[string, monitor.Counts])
	events := make(chan engine.Update[string, engine.Event])
	group := engine.Spawn(ctx, engine.Params[email.Mailbox, string, monitor.Counts]{
		Items:    mailboxes,
		Register: email.Mailbox.Label,
		Workload: adapter,
		Updates:  updates,
		Events:   events,
		Logger:   logger,
	})

	logger.Info("watching mailboxes", "count", group.Len())
	logActivity(ctx, logger, updates, events)

	logger.Info("shutting down")
	group.Stop()
	return nil
}

// logActivity logs everything the engine reports until ctx is done.
func logActivity(
	ctx context.Context,
	logger *slog.Logger,
	updates <-chan engine.Update[string, monitor.Counts],
	events <-chan engine.Update[string, engine.Event],
) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			logger.Info("mailbox counts",
				"mailbox", u.Entry,
				"total", u.Payload.Total,
				"unread", u.Payload.Unread,
			)
		case e := <-events:
			logEvent(logger, e.Entry, e.Payload)
		}
	}
}

func logEvent(logger *slog.Logger, mailbox string, ev engine.Event) {
	switch ev.Kind {
	case supervisor.Started:
		logger.Info("monitor started", "mailbox", mailbox)
	case supervisor.Error:
		logger.Warn("monitor failed",
			"mailbox", mailbox,
			"error", ev.Err,
			"retry_in", ev.NextRetryIn,
		)
	case supervisor.Panicked:
		logger.Error("monitor panicked",
			"mailbox", mailbox,
			"error", ev.Reason(),
			"retry_in", ev.NextRetryIn,
		)
		if ev.Panic != nil {
			logger.Debug("panic stack", "mailbox", mailbox, "stack", string(ev.Panic.Stack))
		}
	case supervisor.Done:
		logger.Info("monitor finished", "mailbox", mailbox)
	}
}
