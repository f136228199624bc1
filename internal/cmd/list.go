package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-notifier/internal/credential"
	"github.com/nhle/mail-notifier/internal/imaputf7"
	"github.com/nhle/mail-notifier/internal/model"
	"github.com/nhle/mail-notifier/internal/source/email"
)

var listCmd = &cobra.Command{
	Use:   "list [server...]",
	Short: "List the mailboxes of configured servers",
	Long: `Connect to each configured server, or only to the named ones, and print
every mailbox it has, decoded and in its wire form.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	servers := make([]*model.ServerConfig, 0, len(cfg.Servers))
	if len(args) == 0 {
		for i := range cfg.Servers {
			servers = append(servers, &cfg.Servers[i])
		}
	}
	for _, name := range args {
		sc, err := lookupServer(cfg, name)
		if err != nil {
			return err
		}
		servers = append(servers, sc)
	}

	resolver := newResolver(credential.Default())
	for _, sc := range servers {
		server, err := resolver.Server(cmd.Context(), cfg, sc)
		if err != nil {
			return err
		}

		names, err := email.ListMailboxes(cmd.Context(), &email.Dialer{Server: server, Logger: logger})
		if err != nil {
			return fmt.Errorf("server %q: %w", sc.Name, err)
		}
		printMailboxes(cmd.OutOrStdout(), sc.Name, names)
	}

	return nil
}

func printMailboxes(w io.Writer, server string, names []imaputf7.Name) {
	fmt.Fprintf(w, "%s:\n", server)
	for _, n := range names {
		decoded := n.Decode()
		if decoded == n.String() {
			fmt.Fprintf(w, "  %s\n", decoded)
			continue
		}
		fmt.Fprintf(w, "  %s (%s)\n", decoded, n)
	}
}
