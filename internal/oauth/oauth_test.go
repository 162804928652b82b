package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// =============================================================================
// State tokens
// =============================================================================

func TestStateRoundtrip(t *testing.T) {
	s := NewStateSigner(testSecret, 0)
	if s.TTL() != DefaultStateTTL {
		t.Errorf("TTL() = %v, want %v", s.TTL(), DefaultStateTTL)
	}

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce() error = %v", err)
	}
	token, err := s.Issue(nonce)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := s.Verify(token, nonce); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestStateRejections(t *testing.T) {
	s := NewStateSigner(testSecret, time.Minute)
	token, err := s.Issue("nonce-a")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	other := NewStateSigner("another-secret-key-at-least-32-chars", time.Minute)
	foreign, err := other.Issue("nonce-a")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	expired := NewStateSigner(testSecret, time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	stale, err := expired.Issue("nonce-a")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
		nonce string
	}{
		{"nonce mismatch", token, "nonce-b"},
		{"empty nonce", token, ""},
		{"empty token", "", "nonce-a"},
		{"garbage", "not-a-jwt", "nonce-a"},
		{"tampered", token[:len(token)-2] + "xx", "nonce-a"},
		{"wrong key", foreign, "nonce-a"},
		{"expired", stale, "nonce-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Verify(tt.token, tt.nonce); !errors.Is(err, ErrInvalidState) {
				t.Errorf("Verify() error = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestIssueEmptyNonce(t *testing.T) {
	if _, err := NewStateSigner(testSecret, 0).Issue(""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Issue(\"\") error = %v, want ErrInvalidState", err)
	}
}

func TestNewNonceUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 50 {
		n, err := NewNonce()
		if err != nil {
			t.Fatalf("NewNonce() error = %v", err)
		}
		if seen[n] {
			t.Fatalf("duplicate nonce %q", n)
		}
		seen[n] = true
	}
}

// =============================================================================
// Google provider
// =============================================================================

// fakeGoogle serves the token and userinfo endpoints.
func fakeGoogle(t *testing.T, userinfo map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			http.Error(w, `{"error":{"code":401,"message":"unauthenticated"}}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userinfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(srv *httptest.Server) *GoogleProvider {
	return NewGoogleProvider(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:3000/auth/google/secrets",
		Scopes:       []string{"profile", "email"},
	},
		WithEndpoint(oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}),
		WithUserinfoEndpoint(srv.URL+"/"),
	)
}

func TestAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{
		ClientID:    "client-id",
		RedirectURL: "http://localhost:3000/auth/google/secrets",
		Scopes:      []string{"profile", "email"},
	})

	u, err := url.Parse(p.AuthCodeURL("state-xyz"))
	if err != nil {
		t.Fatalf("AuthCodeURL() not a URL: %v", err)
	}
	if u.Host != "accounts.google.com" {
		t.Errorf("host = %q, want accounts.google.com", u.Host)
	}
	q := u.Query()
	if q.Get("state") != "state-xyz" || q.Get("client_id") != "client-id" {
		t.Errorf("query = %v", q)
	}
	if q.Get("redirect_uri") != "http://localhost:3000/auth/google/secrets" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
	if !strings.Contains(q.Get("scope"), "userinfo.email") || !strings.Contains(q.Get("scope"), "userinfo.profile") {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if p.Name() != ProviderGoogle {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestExpandScopesDefaults(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{})
	if len(p.cfg.Scopes) != len(DefaultScopes) {
		t.Errorf("Scopes = %v, want defaults", p.cfg.Scopes)
	}
}

func TestExchange(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{
		"id":             "1234567890",
		"email":          "jane@example.com",
		"verified_email": true,
	})

	id, err := testProvider(srv).Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if id.Email != "jane@example.com" || id.Subject != "1234567890" || !id.EmailVerified {
		t.Errorf("Identity = %+v", id)
	}
	if id.Provider != ProviderGoogle {
		t.Errorf("Provider = %q", id.Provider)
	}
}

func TestExchangeUnverifiedEmail(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{
		"id":             "1",
		"email":          "jane@example.com",
		"verified_email": false,
	})

	_, err := testProvider(srv).Exchange(context.Background(), "good-code")
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Errorf("Exchange() error = %v, want ErrEmailNotVerified", err)
	}
}

func TestExchangeBadCode(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{})

	for _, code := range []string{"", "bad-code"} {
		_, err := testProvider(srv).Exchange(context.Background(), code)
		if !errors.Is(err, ErrExchangeFailed) {
			t.Errorf("Exchange(%q) error = %v, want ErrExchangeFailed", code, err)
		}
	}
}
