package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenService is the keyring service holding OAuth 2 tokens.
const DefaultTokenService = "mail-notifier-oauth2"

// TokenStore persists one OAuth 2 token as JSON in a keyring entry.
type TokenStore struct {
	Keyring *Keyring
	Service string
	Account string
}

// Load returns the stored token.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := s.Keyring.get(s.Service, s.Account)
	if err != nil {
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decoding token %s/%s: %w", s.Service, s.Account, err)
	}
	return &tok, nil
}

// Save replaces the stored token.
func (s *TokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return s.Keyring.set(s.Service, s.Account, data)
}

// TokenSource returns a source that serves the stored token until it is
// within tolerance of expiring, then refreshes it through cfg and saves the
// result.
func (s *TokenStore) TokenSource(ctx context.Context, cfg *oauth2.Config, tolerance time.Duration) (oauth2.TokenSource, error) {
	tok, err := s.Load()
	if err != nil {
		return nil, err
	}

	refresher := &refreshingSource{
		ctx:          ctx,
		config:       cfg,
		store:        s,
		refreshToken: tok.RefreshToken,
	}
	return oauth2.ReuseTokenSourceWithExpiry(tok, refresher, tolerance), nil
}

type refreshingSource struct {
	ctx    context.Context
	config *oauth2.Config
	store  *TokenStore

	mu           sync.Mutex
	refreshToken string
}

func (s *refreshingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" {
		return nil, fmt.Errorf("token %s/%s expired and has no refresh token", s.store.Service, s.store.Account)
	}

	// A token without an access token is never valid, so this always hits
	// the token endpoint.
	tok, err := s.config.TokenSource(s.ctx, &oauth2.Token{RefreshToken: s.refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = s.refreshToken
	}
	s.refreshToken = tok.RefreshToken

	if err := s.store.Save(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// TokenSource opens the token stored for account under service. See
// TokenStore.TokenSource.
func (k *Keyring) TokenSource(ctx context.Context, service, account string, cfg *oauth2.Config, tolerance time.Duration) (oauth2.TokenSource, error) {
	store := &TokenStore{Keyring: k, Service: service, Account: account}
	return store.TokenSource(ctx, cfg, tolerance)
}
