package email

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
	"golang.org/x/oauth2"
)

// Authenticator logs an IMAP client in.
type Authenticator interface {
	Authenticate(ctx context.Context, client *imapclient.Client) error

	// Identity is the user name reported in errors.
	Identity() string
}

// Login authenticates with the LOGIN command.
type Login struct {
	Username string
	Password string
}

func (a *Login) Authenticate(_ context.Context, client *imapclient.Client) error {
	return client.Login(a.Username, a.Password).Wait()
}

func (a *Login) Identity() string {
	return a.Username
}

// Mechanism is a SASL mechanism used with OAuth 2 bearer tokens.
type Mechanism string

const (
	MechanismXOAuth2     Mechanism = "XOAUTH2"
	MechanismOAuthBearer Mechanism = "OAUTHBEARER"
)

// OAuth2 authenticates with an OAuth 2 access token. Tokens is asked for a
// token on every connection, so refreshing sources stay current across
// reconnects.
type OAuth2 struct {
	User      string
	Tokens    oauth2.TokenSource
	Mechanism Mechanism
}

func (a *OAuth2) Authenticate(_ context.Context, client *imapclient.Client) error {
	token, err := a.Tokens.Token()
	if err != nil {
		return fmt.Errorf("obtaining access token: %w", err)
	}
	return client.Authenticate(a.saslClient(token.AccessToken))
}

func (a *OAuth2) Identity() string {
	return a.User
}

func (a *OAuth2) saslClient(accessToken string) sasl.Client {
	if a.Mechanism == MechanismOAuthBearer {
		return sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
			Username: a.User,
			Token:    accessToken,
		})
	}
	return NewXOAuth2Client(a.User, accessToken)
}

type xoauth2Client struct {
	user  string
	token string
}

// NewXOAuth2Client returns a sasl.Client for the XOAUTH2 mechanism used by
// Gmail and Outlook.
func NewXOAuth2Client(user, accessToken string) sasl.Client {
	return &xoauth2Client{user: user, token: accessToken}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.user + "\x01auth=Bearer " + c.token + "\x01\x01")
	return string(MechanismXOAuth2), ir, nil
}

// Next answers the error challenge a server sends before rejecting the
// token. The empty response lets it finish with a tagged NO.
func (c *xoauth2Client) Next([]byte) ([]byte, error) {
	return []byte{}, nil
}
