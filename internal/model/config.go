package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// TLS modes accepted in the configuration.
const (
	TLSModeImplicit = "implicit"
	TLSModeStartTLS = "starttls"
)

// SASL mechanisms accepted for OAuth 2 authentication.
const (
	MechanismXOAuth2     = "xoauth2"
	MechanismOAuthBearer = "oauthbearer"
)

// Config is the top-level application configuration.
type Config struct {
	// OAuth2Clients are registered OAuth 2 applications referenced by
	// oauth2-session servers. Viper lowercases their names.
	OAuth2Clients map[string]OAuth2ClientConfig `mapstructure:"oauth2-clients" yaml:"oauth2-clients"`

	Servers []ServerConfig `mapstructure:"servers" yaml:"servers"`
}

// OAuth2ClientConfig describes an OAuth 2 application.
type OAuth2ClientConfig struct {
	ClientID               string   `mapstructure:"client-id" yaml:"client-id"`
	ClientSecret           string   `mapstructure:"client-secret" yaml:"client-secret"`
	TokenURL               string   `mapstructure:"token-url" yaml:"token-url"`
	AuthURL                string   `mapstructure:"auth-url" yaml:"auth-url"`
	DeviceAuthorizationURL string   `mapstructure:"device-authorization-url" yaml:"device-authorization-url"`
	Scopes                 []string `mapstructure:"scopes" yaml:"scopes"`
}

// ServerConfig holds the settings for one IMAP server.
type ServerConfig struct {
	// Name is the user-defined label, unique across servers.
	Name string `mapstructure:"name" yaml:"name"`
	Host string `mapstructure:"host" yaml:"host"`

	// Port defaults to the standard port of the TLS mode when zero.
	Port uint16    `mapstructure:"port" yaml:"port"`
	TLS  TLSConfig `mapstructure:"tls" yaml:"tls"`

	// IdleTimeoutSecs applies to every mailbox without its own value.
	IdleTimeoutSecs uint `mapstructure:"idle-timeout-secs" yaml:"idle-timeout-secs"`

	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Mailboxes []MailboxConfig `mapstructure:"mailboxes" yaml:"mailboxes"`
}

// TLSConfig selects how the connection is secured.
type TLSConfig struct {
	Mode       string `mapstructure:"mode" yaml:"mode"`
	ServerName string `mapstructure:"server-name" yaml:"server-name"`
}

// AuthConfig holds exactly one authentication variant.
type AuthConfig struct {
	Login             *LoginConfig             `mapstructure:"login" yaml:"login"`
	OAuth2Credentials *OAuth2CredentialsConfig `mapstructure:"oauth2-credentials" yaml:"oauth2-credentials"`
	OAuth2Session     *OAuth2SessionConfig     `mapstructure:"oauth2-session" yaml:"oauth2-session"`
}

// LoginConfig authenticates with a user name and a password given inline
// or kept in the keyring.
type LoginConfig struct {
	Username string         `mapstructure:"username" yaml:"username"`
	Password string         `mapstructure:"password" yaml:"password"`
	Keyring  *KeyringConfig `mapstructure:"keyring" yaml:"keyring"`
}

// KeyringConfig locates a keyring entry. Empty fields take defaults.
type KeyringConfig struct {
	Service string `mapstructure:"service" yaml:"service"`
	Account string `mapstructure:"account" yaml:"account"`
}

// OAuth2CredentialsConfig authenticates with a fixed access token.
type OAuth2CredentialsConfig struct {
	User        string `mapstructure:"user" yaml:"user"`
	AccessToken string `mapstructure:"access-token" yaml:"access-token"`
	Mechanism   string `mapstructure:"mechanism" yaml:"mechanism"`
}

// OAuth2SessionConfig authenticates with a refreshable token kept in the
// keyring.
type OAuth2SessionConfig struct {
	User                    string         `mapstructure:"user" yaml:"user"`
	OAuth2Client            string         `mapstructure:"oauth2-client" yaml:"oauth2-client"`
	Keyring                 *KeyringConfig `mapstructure:"keyring" yaml:"keyring"`
	ExpirationToleranceSecs uint           `mapstructure:"expiration-tolerance-secs" yaml:"expiration-tolerance-secs"`
	Mechanism               string         `mapstructure:"mechanism" yaml:"mechanism"`
}

// MailboxConfig names one mailbox to watch, in human-readable form.
type MailboxConfig struct {
	Name            string `mapstructure:"name" yaml:"name"`
	IdleTimeoutSecs uint   `mapstructure:"idle-timeout-secs" yaml:"idle-timeout-secs"`
}

// LoadConfig reads and validates the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports every problem in the configuration at once and
// normalizes TLS mode and mechanism spellings.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Servers) == 0 {
		errs = append(errs, errors.New("no servers configured"))
	}

	seen := make(map[string]bool, len(c.Servers))
	for i := range c.Servers {
		s := &c.Servers[i]
		where := fmt.Sprintf("servers[%d]", i)
		if s.Name != "" {
			where = fmt.Sprintf("server %q", s.Name)
		}

		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("%s: duplicate name", where))
		}
		seen[s.Name] = true

		if s.Host == "" {
			errs = append(errs, fmt.Errorf("%s: host is required", where))
		}

		mode, err := NormalizeTLSMode(s.TLS.Mode)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		s.TLS.Mode = mode

		if len(s.Mailboxes) == 0 {
			errs = append(errs, fmt.Errorf("%s: no mailboxes configured", where))
		}
		for j, mb := range s.Mailboxes {
			if mb.Name == "" {
				errs = append(errs, fmt.Errorf("%s: mailboxes[%d]: name is required", where, j))
			}
		}

		if err := c.validateAuth(&s.Auth); err != nil {
			errs = append(errs, fmt.Errorf("%s: auth: %w", where, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) validateAuth(a *AuthConfig) error {
	n := 0
	var errs []error

	if l := a.Login; l != nil {
		n++
		if l.Username == "" {
			errs = append(errs, errors.New("login: username is required"))
		}
		if (l.Password == "") == (l.Keyring == nil) {
			errs = append(errs, errors.New("login: exactly one of password and keyring is required"))
		}
	}

	if o := a.OAuth2Credentials; o != nil {
		n++
		if o.User == "" || o.AccessToken == "" {
			errs = append(errs, errors.New("oauth2-credentials: user and access-token are required"))
		}
		mech, err := NormalizeMechanism(o.Mechanism)
		if err != nil {
			errs = append(errs, fmt.Errorf("oauth2-credentials: %w", err))
		}
		o.Mechanism = mech
	}

	if o := a.OAuth2Session; o != nil {
		n++
		if o.User == "" {
			errs = append(errs, errors.New("oauth2-session: user is required"))
		}
		if _, ok := c.OAuth2Clients[strings.ToLower(o.OAuth2Client)]; !ok {
			errs = append(errs, fmt.Errorf("oauth2-session: unknown oauth2-client %q", o.OAuth2Client))
		}
		mech, err := NormalizeMechanism(o.Mechanism)
		if err != nil {
			errs = append(errs, fmt.Errorf("oauth2-session: %w", err))
		}
		o.Mechanism = mech
	}

	if n != 1 {
		errs = append(errs, fmt.Errorf("exactly one authentication method is required, found %d", n))
	}

	return errors.Join(errs...)
}

// OAuth2Client returns the named OAuth 2 client.
func (c *Config) OAuth2Client(name string) (OAuth2ClientConfig, bool) {
	client, ok := c.OAuth2Clients[strings.ToLower(name)]
	return client, ok
}

// Server returns the server with the given name.
func (c *Config) Server(name string) (*ServerConfig, bool) {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i], true
		}
	}
	return nil, false
}

// NormalizeTLSMode maps the accepted spellings of a TLS mode to
// TLSModeImplicit or TLSModeStartTLS. The empty string means implicit.
func NormalizeTLSMode(mode string) (string, error) {
	switch strings.ToLower(mode) {
	case "", TLSModeImplicit:
		return TLSModeImplicit, nil
	case TLSModeStartTLS, "start-tls", "start_tls":
		return TLSModeStartTLS, nil
	default:
		return "", fmt.Errorf("unknown TLS mode %q", mode)
	}
}

// NormalizeMechanism maps a configured SASL mechanism to MechanismXOAuth2
// or MechanismOAuthBearer. The empty string means XOAUTH2.
func NormalizeMechanism(mech string) (string, error) {
	switch strings.ToLower(mech) {
	case "", MechanismXOAuth2:
		return MechanismXOAuth2, nil
	case MechanismOAuthBearer:
		return MechanismOAuthBearer, nil
	default:
		return "", fmt.Errorf("unknown SASL mechanism %q", mech)
	}
}
