package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "")
	t.Setenv("QUOTA_DAILY_CAP", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %v, want 5m default", cfg.SyncInterval)
	}
	if cfg.QuotaDailyCap != 10000 {
		t.Errorf("QuotaDailyCap = %d, want 10000 default", cfg.QuotaDailyCap)
	}
	if cfg.CooldownWindow != time.Hour {
		t.Errorf("CooldownWindow = %v, want 1h default", cfg.CooldownWindow)
	}
	if cfg.ProfileTTL != 24*time.Hour {
		t.Errorf("ProfileTTL = %v, want 24h default", cfg.ProfileTTL)
	}
	if cfg.ListenAddr == "" || cfg.DBDsn == "" {
		t.Errorf("expected defaults for listen addr and dsn")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "90s")
	t.Setenv("CREATOR_DELAY", "250ms")
	t.Setenv("QUOTA_DAILY_CAP", "500")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SyncInterval != 90*time.Second {
		t.Errorf("SyncInterval = %v, want 90s", cfg.SyncInterval)
	}
	if cfg.CreatorDelay != 250*time.Millisecond {
		t.Errorf("CreatorDelay = %v, want 250ms", cfg.CreatorDelay)
	}
	if cfg.QuotaDailyCap != 500 {
		t.Errorf("QuotaDailyCap = %d, want 500", cfg.QuotaDailyCap)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for unparseable SYNC_INTERVAL")
	}
	t.Setenv("SYNC_INTERVAL", "")
	t.Setenv("QUOTA_DAILY_CAP", "-5")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for negative QUOTA_DAILY_CAP")
	}
}

func TestConfiguredHelpers(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "id")
	t.Setenv("TWITCH_CLIENT_SECRET", "secret")
	t.Setenv("YT_API_KEY", "")
	cfg, _ := Load()
	if !cfg.TwitchConfigured() {
		t.Errorf("expected twitch configured")
	}
	if cfg.YouTubeConfigured() {
		t.Errorf("expected youtube unconfigured")
	}
}

func TestTwitchUsable(t *testing.T) {
	cases := []struct {
		name   string
		id     string
		secret string
		token  string
		want   bool
	}{
		{"id and secret", "id", "secret", "", true},
		{"id and static token", "id", "", "tok", true},
		{"static token without client id", "", "", "tok", false},
		{"nothing", "", "", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Setenv("TWITCH_CLIENT_ID", c.id)
			t.Setenv("TWITCH_CLIENT_SECRET", c.secret)
			t.Setenv("TWITCH_APP_TOKEN", c.token)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if got := cfg.TwitchUsable(); got != c.want {
				t.Errorf("TwitchUsable() = %v, want %v", got, c.want)
			}
		})
	}
}
