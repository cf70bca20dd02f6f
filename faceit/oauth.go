package faceit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Token exchange authentication styles. The deployment picks exactly one;
// they are mutually exclusive shapes of the same operation.
const (
	AuthStyleBasic = "basic" // client credentials via HTTP Basic, form-encoded body
	AuthStyleJSON  = "json"  // plain JSON body, no client secret
)

// OAuthConfig drives the authorization-code-with-PKCE flow against FACEIT.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string // unused for AuthStyleJSON
	RedirectURI  string
	Scopes       string // space-separated
	AuthURL      string
	TokenURL     string
	UserinfoURL  string
	AuthStyle    string
	HTTPClient   *http.Client
}

func (c *OAuthConfig) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (c *OAuthConfig) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       strings.Fields(c.Scopes),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// GenerateVerifier returns a fresh PKCE code verifier (32 random bytes,
// base64url, no padding).
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL builds the user authorization URL embedding client id, redirect
// target, scopes, state, and the S256 challenge derived from verifier.
func (c *OAuthConfig) AuthCodeURL(state, verifier string) (string, error) {
	if c.ClientID == "" || c.RedirectURI == "" {
		return "", errors.New("missing clientID or redirectURI")
	}
	return c.oauth2Config().AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// ExchangeAuthCode exchanges an authorization code plus the stored verifier
// for an access token. The client secret, when used at all, never leaves the
// server side of this call.
func (c *OAuthConfig) ExchangeAuthCode(ctx context.Context, code, verifier string) (string, error) {
	if code == "" || verifier == "" {
		return "", errors.New("missing code or verifier for auth code exchange")
	}
	switch c.AuthStyle {
	case AuthStyleJSON:
		return c.exchangeJSON(ctx, code, verifier)
	default:
		return c.exchangeBasic(ctx, code, verifier)
	}
}

func (c *OAuthConfig) exchangeBasic(ctx context.Context, code, verifier string) (string, error) {
	if c.ClientSecret == "" {
		return "", errors.New("basic auth style requires a client secret")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http())
	tok, err := c.oauth2Config().Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("faceit token exchange failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access_token in faceit token response")
	}
	return tok.AccessToken, nil
}

func (c *OAuthConfig) exchangeJSON(ctx context.Context, code, verifier string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  c.RedirectURI,
		"client_id":     c.ClientID,
		"code_verifier": verifier,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("faceit token exchange failed: %s: %s", resp.Status, string(b))
	}
	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	if res.AccessToken == "" {
		return "", errors.New("empty access_token in faceit token response")
	}
	return res.AccessToken, nil
}

// UserInfo is the external account identity behind an access token.
type UserInfo struct {
	GUID     string
	Nickname string
}

// FetchUserInfo resolves the account behind an access token. The id may be
// delivered as guid, id, or sub; the display name as nickname or name.
func (c *OAuthConfig) FetchUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	if accessToken == "" {
		return nil, errors.New("accessToken empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("faceit userinfo failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		GUID     string `json:"guid"`
		ID       string `json:"id"`
		Sub      string `json:"sub"`
		Nickname string `json:"nickname"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	info := &UserInfo{GUID: body.GUID, Nickname: body.Nickname}
	if info.GUID == "" {
		info.GUID = body.ID
	}
	if info.GUID == "" {
		info.GUID = body.Sub
	}
	if info.Nickname == "" {
		info.Nickname = body.Name
	}
	if info.GUID == "" {
		return nil, errors.New("no account id in faceit userinfo response")
	}
	return info, nil
}
