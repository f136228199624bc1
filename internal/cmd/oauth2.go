package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-notifier/internal/bringup"
	"github.com/nhle/mail-notifier/internal/credential"
)

var oauth2Cmd = &cobra.Command{
	Use:   "oauth2",
	Short: "Manage OAuth 2 sessions",
}

var oauth2LoginCmd = &cobra.Command{
	Use:   "login <server>",
	Short: "Authorize an OAuth 2 session with the device flow",
	Long: `Run the OAuth 2 device authorization flow for a server using an
oauth2-session, and store the resulting token in the keyring. The token is
refreshed automatically afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runOAuth2Login,
}

func init() {
	oauth2Cmd.AddCommand(oauth2LoginCmd)
	rootCmd.AddCommand(oauth2Cmd)
}

func runOAuth2Login(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := lookupServer(cfg, args[0])
	if err != nil {
		return err
	}

	session := sc.Auth.OAuth2Session
	if session == nil {
		return fmt.Errorf("server %q does not use an oauth2-session", sc.Name)
	}
	client, ok := cfg.OAuth2Client(session.OAuth2Client)
	if !ok {
		return fmt.Errorf("oauth2 client %q not found", session.OAuth2Client)
	}
	oc, err := bringup.OAuth2Config(client)
	if err != nil {
		return fmt.Errorf("oauth2 client %q: %w", session.OAuth2Client, err)
	}
	if oc.Endpoint.DeviceAuthURL == "" {
		return fmt.Errorf("oauth2 client %q has no device-authorization-url", session.OAuth2Client)
	}

	ctx := cmd.Context()
	auth, err := oc.DeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("starting device authorization: %w", err)
	}

	out := cmd.OutOrStdout()
	if auth.VerificationURIComplete != "" {
		fmt.Fprintf(out, "Open %s to authorize %s.\n", auth.VerificationURIComplete, session.User)
	} else {
		fmt.Fprintf(out, "Open %s and enter the code %s to authorize %s.\n", auth.VerificationURI, auth.UserCode, session.User)
	}
	if !auth.Expiry.IsZero() {
		fmt.Fprintf(out, "The code expires %s.\n", humanize.Time(auth.Expiry))
	}

	token, err := oc.DeviceAccessToken(ctx, auth)
	if err != nil {
		return fmt.Errorf("waiting for authorization: %w", err)
	}

	service, account := bringup.SessionKeyring(session)
	store := &credential.TokenStore{Keyring: credential.Default(), Service: service, Account: account}
	if err := store.Save(token); err != nil {
		return err
	}

	logger.Debug("stored oauth2 token", "service", service, "account", account, "expiry", token.Expiry)
	fmt.Fprintf(out, "Authorized. Token stored in keyring service %q.\n", service)
	return nil
}
