package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-notifier/internal/bringup"
	"github.com/nhle/mail-notifier/internal/credential"
	"github.com/nhle/mail-notifier/internal/model"
)

var keyringCmd = &cobra.Command{
	Use:   "keyring",
	Short: "Manage passwords stored in the system keyring",
}

var keyringSetCmd = &cobra.Command{
	Use:   "set <server>",
	Short: "Store the login password of a server",
	Long: `Prompt for the login password of a server whose configuration reads it
from the keyring, and store it under the configured service and account.`,
	Args: cobra.ExactArgs(1),
	RunE: runKeyringSet,
}

var keyringDeleteCmd = &cobra.Command{
	Use:   "delete <server>",
	Short: "Remove the stored login password of a server",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyringDelete,
}

var keyringStdin bool

func init() {
	keyringSetCmd.Flags().BoolVar(&keyringStdin, "stdin", false, "read the password from the first line of standard input")
	keyringCmd.AddCommand(keyringSetCmd, keyringDeleteCmd)
	rootCmd.AddCommand(keyringCmd)
}

func runKeyringSet(cmd *cobra.Command, args []string) error {
	login, err := keyringLogin(args[0])
	if err != nil {
		return err
	}
	service, account := bringup.LoginKeyring(login)

	var password string
	if keyringStdin {
		password, err = readSecret(cmd.InOrStdin())
	} else {
		password, err = promptPassword(args[0], account)
	}
	if err != nil {
		return err
	}

	if err := credential.Default().Set(service, account, password); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored password for %s in keyring service %q.\n", account, service)
	return nil
}

func runKeyringDelete(cmd *cobra.Command, args []string) error {
	login, err := keyringLogin(args[0])
	if err != nil {
		return err
	}
	service, account := bringup.LoginKeyring(login)

	if err := credential.Default().Delete(service, account); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed password for %s from keyring service %q.\n", account, service)
	return nil
}

func keyringLogin(server string) (*model.LoginConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	sc, err := lookupServer(cfg, server)
	if err != nil {
		return nil, err
	}

	login := sc.Auth.Login
	if login == nil || login.Keyring == nil {
		return nil, fmt.Errorf("server %q does not read its password from the keyring", server)
	}
	return login, nil
}

func promptPassword(server, account string) (string, error) {
	var password string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				Description(fmt.Sprintf("IMAP password of %s on %s", account, server)).
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(validateRequired("Password")),
		),
	).Run()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// readSecret returns the first line of r without its line ending.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}

	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("empty password")
	}
	return secret, nil
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
