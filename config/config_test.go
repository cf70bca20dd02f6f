package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear anything the environment might carry.
	for _, k := range []string{
		"FACEIT_API_BASE", "FACEIT_SCOPES", "FACEIT_AUTH_URL", "FACEIT_TOKEN_URL",
		"FACEIT_USERINFO_URL", "FACEIT_TOKEN_AUTH_STYLE", "DISCORD_API_BASE",
		"DB_DSN", "VERIFY_TTL",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FaceitAPIBase != "https://open.faceit.com/data/v4" {
		t.Errorf("FaceitAPIBase = %q", cfg.FaceitAPIBase)
	}
	if cfg.FaceitScopes != "openid profile" {
		t.Errorf("FaceitScopes = %q", cfg.FaceitScopes)
	}
	if cfg.TokenAuthStyle != "basic" {
		t.Errorf("TokenAuthStyle = %q, want basic", cfg.TokenAuthStyle)
	}
	if cfg.VerifyTTL != 10*time.Minute {
		t.Errorf("VerifyTTL = %v, want 10m", cfg.VerifyTTL)
	}
	if cfg.DBDsn == "" {
		t.Error("DBDsn should default to a local DSN")
	}
}

func TestLoadTokenAuthStyle(t *testing.T) {
	tests := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{"", "basic", false},
		{"basic", "basic", false},
		{"json", "json", false},
		{"form", "", true},
	}
	for _, tt := range tests {
		t.Run("style="+tt.value, func(t *testing.T) {
			t.Setenv("FACEIT_TOKEN_AUTH_STYLE", tt.value)
			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.TokenAuthStyle != tt.want {
				t.Errorf("TokenAuthStyle = %q, want %q", cfg.TokenAuthStyle, tt.want)
			}
		})
	}
}

func TestLoadInvalidVerifyTTL(t *testing.T) {
	t.Setenv("VERIFY_TTL", "ten minutes")
	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for invalid VERIFY_TTL")
	}
}

func TestValidateOAuthReady(t *testing.T) {
	cfg := &Config{TokenAuthStyle: "basic"}
	if err := cfg.ValidateOAuthReady(); err == nil {
		t.Error("expected error for missing client id/redirect")
	}
	cfg.FaceitClientID = "cid"
	cfg.FaceitRedirectURI = "http://localhost/callback"
	if err := cfg.ValidateOAuthReady(); err == nil {
		t.Error("expected error: basic style without secret")
	}
	cfg.FaceitClientSecret = "shh"
	if err := cfg.ValidateOAuthReady(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	jsonCfg := &Config{TokenAuthStyle: "json", FaceitClientID: "cid", FaceitRedirectURI: "http://localhost/cb"}
	if err := jsonCfg.ValidateOAuthReady(); err != nil {
		t.Errorf("json style should not require a secret: %v", err)
	}
}

func TestValidateProvisioningReady(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateProvisioningReady(); err == nil {
		t.Error("expected error for missing discord env")
	}
	cfg.DiscordBotToken = "tok"
	cfg.DiscordGuildID = "guild"
	if err := cfg.ValidateProvisioningReady(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
