package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

func newTestKeyring(t *testing.T) *Keyring {
	t.Helper()

	return &Keyring{
		Backends:     []keyring.BackendType{keyring.FileBackend},
		FileDir:      t.TempDir(),
		FilePassword: "test",
	}
}

func TestKeyringSetGetDelete(t *testing.T) {
	k := newTestKeyring(t)

	if _, err := k.Get(DefaultService, "me@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on empty keyring error = %v, want ErrNotFound", err)
	}

	if err := k.Set(DefaultService, "me@example.com", "hunter2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := k.Get(DefaultService, "me@example.com")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Get() = %q, want %q", got, "hunter2")
	}

	if err := k.Delete(DefaultService, "me@example.com"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := k.Delete(DefaultService, "me@example.com"); err != nil {
		t.Errorf("Delete() of missing entry error = %v, want nil", err)
	}
	if _, err := k.Get(DefaultService, "me@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestKeyringSeparatesServices(t *testing.T) {
	k := newTestKeyring(t)

	if err := k.Set("a", "acct", "one"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := k.Set("b", "acct", "two"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	for service, want := range map[string]string{"a": "one", "b": "two"} {
		got, err := k.Get(service, "acct")
		if err != nil {
			t.Fatalf("Get(%q) error = %v", service, err)
		}
		if got != want {
			t.Errorf("Get(%q) = %q, want %q", service, got, want)
		}
	}
}

func TestTokenSourceReusesValidToken(t *testing.T) {
	store := &TokenStore{Keyring: newTestKeyring(t), Service: DefaultTokenService, Account: "me"}
	stored := &oauth2.Token{
		AccessToken:  "current",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(2 * time.Hour),
	}
	if err := store.Save(stored); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: "http://127.0.0.1:1/unused"}}
	src, err := store.TokenSource(context.Background(), cfg, time.Hour)
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}

	tok, err := src.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "current" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "current")
	}
}

func TestTokenSourceRefreshesWithinTolerance(t *testing.T) {
	var refreshes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if got := r.PostForm.Get("refresh_token"); got != "refresh" {
			t.Errorf("refresh_token = %q, want %q", got, "refresh")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"renewed","token_type":"Bearer","expires_in":7200}`)
	}))
	t.Cleanup(srv.Close)

	store := &TokenStore{Keyring: newTestKeyring(t), Service: DefaultTokenService, Account: "me"}
	if err := store.Save(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(30 * time.Minute),
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cfg := &oauth2.Config{
		ClientID: "client",
		Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
	}
	src, err := store.TokenSource(context.Background(), cfg, time.Hour)
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}

	tok, err := src.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "renewed" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "renewed")
	}
	if refreshes != 1 {
		t.Errorf("token endpoint hit %d times, want 1", refreshes)
	}

	saved, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved.AccessToken != "renewed" || saved.RefreshToken != "refresh" {
		t.Errorf("saved token = %+v, want renewed access token and original refresh token", saved)
	}
}

func TestTokenSourceMissingToken(t *testing.T) {
	store := &TokenStore{Keyring: newTestKeyring(t), Service: DefaultTokenService, Account: "nobody"}

	_, err := store.TokenSource(context.Background(), &oauth2.Config{}, time.Hour)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("TokenSource() error = %v, want ErrNotFound", err)
	}
}
