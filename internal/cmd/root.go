package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nhle/mail-notifier/internal/bringup"
	"github.com/nhle/mail-notifier/internal/credential"
	"github.com/nhle/mail-notifier/internal/logging"
	"github.com/nhle/mail-notifier/internal/model"
)

var rootCmd = &cobra.Command{
	Use:   "mail-notifier",
	Short: "Watch IMAP mailboxes and report unread counts",
	Long: `mail-notifier keeps one IDLE connection per configured mailbox and
reports its total and unread message counts whenever they change.
Failed connections are retried with exponential backoff.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// logger is set up before any subcommand runs.
var logger = slog.Default()

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default: first of the standard locations)")
	rootCmd.PersistentFlags().String("log-level", logging.LevelInfo, "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", logging.FormatText, "log format: text or json")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))

	// MAIL_NOTIFIER_LOG_LEVEL for log-level
	viper.SetEnvPrefix("MAIL_NOTIFIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	l, err := logging.New(cmd.ErrOrStderr(), viper.GetString("log-level"), viper.GetString("log-format"))
	if err != nil {
		return err
	}
	logger = l
	slog.SetDefault(l)
	return nil
}

// loadConfig reads the configuration named by --config, or the first one
// found in the standard locations.
func loadConfig() (*model.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		found, err := model.FindConfig()
		if err != nil {
			return nil, err
		}
		path = found
	}

	logger.Debug("loading config", "path", path)
	return model.LoadConfig(path)
}

func newResolver(ring *credential.Keyring) *bringup.Resolver {
	return &bringup.Resolver{Secrets: ring, Tokens: ring}
}

// lookupServer returns the named server or an error listing the known
// ones.
func lookupServer(cfg *model.Config, name string) (*model.ServerConfig, error) {
	if sc, ok := cfg.Server(name); ok {
		return sc, nil
	}

	names := make([]string, len(cfg.Servers))
	for i, s := range cfg.Servers {
		names[i] = s.Name
	}
	return nil, fmt.Errorf("unknown server %q (configured: %s)", name, strings.Join(names, ", "))
}
