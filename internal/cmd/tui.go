package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nhle/mail-notifier/internal/app"
	"github.com/nhle/mail-notifier/internal/credential"
	"github.com/nhle/mail-notifier/internal/logging"
	"github.com/nhle/mail-notifier/internal/source/email"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Show live mailbox counts in a terminal dashboard",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var tuiLogFile string

func init() {
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "write logs to this file while the dashboard runs")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The dashboard owns the terminal.
	tuiLogger := logging.Discard()
	if tuiLogFile != "" {
		f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		tuiLogger, err = logging.New(f, viper.GetString("log-level"), viper.GetString("log-format"))
		if err != nil {
			return err
		}
	}

	mailboxes, err := newResolver(credential.Default()).Mailboxes(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("bringup: %w", err)
	}

	interrupts := &email.Interrupter{}
	model := app.New(cmd.Context(), app.Config{
		Mailboxes:  mailboxes,
		Workload:   &email.Adapter{Interrupts: interrupts, Logger: tuiLogger},
		Interrupts: interrupts,
		Logger:     tuiLogger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
