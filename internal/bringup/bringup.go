// Package bringup turns a validated configuration into ready-to-monitor
// mailboxes: defaults applied, passwords read from the keyring and OAuth 2
// token sources built.
package bringup

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/nhle/mail-notifier/internal/credential"
	"github.com/nhle/mail-notifier/internal/imaputf7"
	"github.com/nhle/mail-notifier/internal/model"
	"github.com/nhle/mail-notifier/internal/source/email"
)

// Defaults applied when the configuration leaves a value out.
const (
	DefaultIdleTimeout         = 300 * time.Second
	DefaultExpirationTolerance = time.Hour
)

// SecretStore reads passwords kept in a keyring.
type SecretStore interface {
	Get(service, account string) (string, error)
}

// TokenOpener builds a refreshing token source over a stored OAuth 2
// token.
type TokenOpener interface {
	TokenSource(ctx context.Context, service, account string, cfg *oauth2.Config, tolerance time.Duration) (oauth2.TokenSource, error)
}

// Resolver resolves configuration into runtime values.
type Resolver struct {
	Secrets SecretStore
	Tokens  TokenOpener
}

// Mailboxes returns one monitoring target per configured mailbox, in
// configuration order. Mailboxes of a server share one *email.Server.
func (r *Resolver) Mailboxes(ctx context.Context, cfg *model.Config) ([]email.Mailbox, error) {
	var list []email.Mailbox

	for i := range cfg.Servers {
		sc := &cfg.Servers[i]
		server, err := r.Server(ctx, cfg, sc)
		if err != nil {
			return nil, err
		}

		for _, mc := range sc.Mailboxes {
			list = append(list, email.Mailbox{
				Server:      server,
				Name:        imaputf7.Encode(mc.Name),
				IdleTimeout: idleTimeout(sc, mc),
			})
		}
	}

	return list, nil
}

// Servers resolves every configured server without its mailboxes.
func (r *Resolver) Servers(ctx context.Context, cfg *model.Config) ([]*email.Server, error) {
	servers := make([]*email.Server, 0, len(cfg.Servers))
	for i := range cfg.Servers {
		server, err := r.Server(ctx, cfg, &cfg.Servers[i])
		if err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}
	return servers, nil
}

// Server resolves one server.
func (r *Resolver) Server(ctx context.Context, cfg *model.Config, sc *model.ServerConfig) (*email.Server, error) {
	mode := email.TLSImplicit
	if sc.TLS.Mode == model.TLSModeStartTLS {
		mode = email.TLSStartTLS
	}

	port := sc.Port
	if port == 0 {
		port = mode.DefaultPort()
	}

	serverName := sc.TLS.ServerName
	if serverName == "" {
		serverName = sc.Host
	}

	auth, err := r.auth(ctx, cfg, &sc.Auth)
	if err != nil {
		return nil, fmt.Errorf("server %q: auth: %w", sc.Name, err)
	}

	return &email.Server{
		Name:          sc.Name,
		Host:          sc.Host,
		Port:          port,
		TLSMode:       mode,
		TLSServerName: serverName,
		Auth:          auth,
	}, nil
}

func (r *Resolver) auth(ctx context.Context, cfg *model.Config, ac *model.AuthConfig) (email.Authenticator, error) {
	switch {
	case ac.Login != nil:
		password := ac.Login.Password
		if ac.Login.Keyring != nil {
			service, account := LoginKeyring(ac.Login)
			secret, err := r.Secrets.Get(service, account)
			if err != nil {
				return nil, fmt.Errorf("resolve password: %w", err)
			}
			password = secret
		}
		return &email.Login{Username: ac.Login.Username, Password: password}, nil

	case ac.OAuth2Credentials != nil:
		c := ac.OAuth2Credentials
		return &email.OAuth2{
			User:      c.User,
			Tokens:    oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.AccessToken}),
			Mechanism: mechanism(c.Mechanism),
		}, nil

	case ac.OAuth2Session != nil:
		s := ac.OAuth2Session
		client, ok := cfg.OAuth2Client(s.OAuth2Client)
		if !ok {
			return nil, fmt.Errorf("oauth2 client %q not found", s.OAuth2Client)
		}
		oc, err := OAuth2Config(client)
		if err != nil {
			return nil, fmt.Errorf("oauth2 client %q: %w", s.OAuth2Client, err)
		}

		tolerance := DefaultExpirationTolerance
		if s.ExpirationToleranceSecs > 0 {
			tolerance = time.Duration(s.ExpirationToleranceSecs) * time.Second
		}

		service, account := SessionKeyring(s)
		tokens, err := r.Tokens.TokenSource(ctx, service, account, oc, tolerance)
		if err != nil {
			return nil, fmt.Errorf("oauth2 session: %w", err)
		}
		return &email.OAuth2{
			User:      s.User,
			Tokens:    tokens,
			Mechanism: mechanism(s.Mechanism),
		}, nil

	default:
		return nil, fmt.Errorf("no authentication method configured")
	}
}

// OAuth2Config builds the client configuration for an OAuth 2
// application, checking its URLs.
func OAuth2Config(c model.OAuth2ClientConfig) (*oauth2.Config, error) {
	for _, u := range []struct{ field, value string }{
		{"token-url", c.TokenURL},
		{"auth-url", c.AuthURL},
		{"device-authorization-url", c.DeviceAuthorizationURL},
	} {
		if u.value == "" {
			if u.field == "token-url" {
				return nil, fmt.Errorf("token-url is required")
			}
			continue
		}
		if _, err := url.ParseRequestURI(u.value); err != nil {
			return nil, fmt.Errorf("%s: %w", u.field, err)
		}
	}

	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       c.AuthURL,
			TokenURL:      c.TokenURL,
			DeviceAuthURL: c.DeviceAuthorizationURL,
		},
	}, nil
}

// LoginKeyring returns the keyring service and account holding the
// password of a login, applying defaults.
func LoginKeyring(l *model.LoginConfig) (service, account string) {
	return serviceAccount(l.Keyring, l.Username, credential.DefaultService)
}

// SessionKeyring returns the keyring service and account holding the
// token of an OAuth 2 session, applying defaults.
func SessionKeyring(s *model.OAuth2SessionConfig) (service, account string) {
	return serviceAccount(s.Keyring, s.User, credential.DefaultTokenService)
}

func serviceAccount(k *model.KeyringConfig, user, defaultService string) (string, string) {
	service, account := defaultService, user
	if k != nil {
		if k.Service != "" {
			service = k.Service
		}
		if k.Account != "" {
			account = k.Account
		}
	}
	return service, account
}

func idleTimeout(sc *model.ServerConfig, mc model.MailboxConfig) time.Duration {
	switch {
	case mc.IdleTimeoutSecs > 0:
		return time.Duration(mc.IdleTimeoutSecs) * time.Second
	case sc.IdleTimeoutSecs > 0:
		return time.Duration(sc.IdleTimeoutSecs) * time.Second
	default:
		return DefaultIdleTimeout
	}
}

func mechanism(m string) email.Mechanism {
	if m == model.MechanismOAuthBearer {
		return email.MechanismOAuthBearer
	}
	return email.MechanismXOAuth2
}
