package faceit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestAuthCodeURL(t *testing.T) {
	c := &OAuthConfig{
		ClientID:    "cid",
		RedirectURI: "https://app.example/callback",
		Scopes:      "openid profile",
		AuthURL:     "https://auth.example/authorize",
	}
	verifier := GenerateVerifier()
	raw, err := c.AuthCodeURL("the-state", verifier)
	if err != nil {
		t.Fatalf("AuthCodeURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "cid" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("state") != "the-state" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		t.Errorf("PKCE challenge missing: %v", q)
	}
	if q.Get("code_challenge") == verifier {
		t.Error("challenge must be derived from the verifier, not the verifier itself")
	}
	if q.Get("redirect_uri") != "https://app.example/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestAuthCodeURLRequiresConfig(t *testing.T) {
	c := &OAuthConfig{}
	if _, err := c.AuthCodeURL("s", "v"); err == nil {
		t.Fatal("expected error with empty client config")
	}
}

func TestExchangeAuthCodeBasic(t *testing.T) {
	var gotVerifier, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotVerifier = r.PostForm.Get("code_verifier")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	c := &OAuthConfig{
		ClientID:     "cid",
		ClientSecret: "shhh",
		RedirectURI:  "https://app.example/callback",
		TokenURL:     srv.URL,
		AuthStyle:    AuthStyleBasic,
	}
	tok, err := c.ExchangeAuthCode(context.Background(), "the-code", "the-verifier")
	if err != nil {
		t.Fatalf("ExchangeAuthCode: %v", err)
	}
	if tok != "at-123" {
		t.Errorf("token = %q", tok)
	}
	if gotVerifier != "the-verifier" {
		t.Errorf("code_verifier = %q", gotVerifier)
	}
	if gotAuth == "" {
		t.Error("basic style must send client credentials in the Authorization header")
	}
}

func TestExchangeAuthCodeBasicRequiresSecret(t *testing.T) {
	c := &OAuthConfig{ClientID: "cid", TokenURL: "http://unused", AuthStyle: AuthStyleBasic}
	if _, err := c.ExchangeAuthCode(context.Background(), "code", "verifier"); err == nil {
		t.Fatal("basic style without a secret must fail")
	}
}

func TestExchangeAuthCodeJSON(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("json style must not send an Authorization header, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "at-456"})
	}))
	defer srv.Close()

	c := &OAuthConfig{
		ClientID:    "cid",
		RedirectURI: "https://app.example/callback",
		TokenURL:    srv.URL,
		AuthStyle:   AuthStyleJSON,
	}
	tok, err := c.ExchangeAuthCode(context.Background(), "the-code", "the-verifier")
	if err != nil {
		t.Fatalf("ExchangeAuthCode: %v", err)
	}
	if tok != "at-456" {
		t.Errorf("token = %q", tok)
	}
	want := map[string]string{
		"grant_type":    "authorization_code",
		"code":          "the-code",
		"redirect_uri":  "https://app.example/callback",
		"client_id":     "cid",
		"code_verifier": "the-verifier",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("body[%q] = %q, want %q", k, body[k], v)
		}
	}
}

func TestExchangeAuthCodeJSONUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := &OAuthConfig{ClientID: "cid", TokenURL: srv.URL, AuthStyle: AuthStyleJSON}
	if _, err := c.ExchangeAuthCode(context.Background(), "bad-code", "verifier"); err == nil {
		t.Fatal("expected error on non-200 token response")
	}
}

func TestFetchUserInfo(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantGUID string
		wantNick string
		wantErr  bool
	}{
		{
			name:     "guid and nickname",
			body:     `{"guid": "g-1", "nickname": "s1mple"}`,
			wantGUID: "g-1",
			wantNick: "s1mple",
		},
		{
			name:     "id fallback",
			body:     `{"id": "g-2", "name": "device"}`,
			wantGUID: "g-2",
			wantNick: "device",
		},
		{
			name:     "sub fallback",
			body:     `{"sub": "g-3", "nickname": "ropz"}`,
			wantGUID: "g-3",
			wantNick: "ropz",
		},
		{
			name:    "no id at all",
			body:    `{"nickname": "ghost"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer at-1" {
					t.Errorf("Authorization = %q", got)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := &OAuthConfig{UserinfoURL: srv.URL}
			info, err := c.FetchUserInfo(context.Background(), "at-1")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchUserInfo: %v", err)
			}
			if info.GUID != tt.wantGUID || info.Nickname != tt.wantNick {
				t.Errorf("info = %+v", info)
			}
		})
	}
}
