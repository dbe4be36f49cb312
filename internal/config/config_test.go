package config

import (
	"os"
	"testing"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore dir: %v", err)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GIN_MODE", "test")
	t.Setenv("WORKSPACE_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("unexpected port: %s", cfg.Port)
	}
	if cfg.MaxPages != 200 || cfg.MaxFiles != 20 {
		t.Fatalf("unexpected limits: pages=%d files=%d", cfg.MaxPages, cfg.MaxFiles)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected origins: %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.WorkspaceDir == "" {
		t.Fatal("expected workspace dir default")
	}
	if cfg.SessionLifetimeMinutes != 720 || cfg.SessionIdleMinutes != 30 {
		t.Fatalf("unexpected session timeouts: lifetime=%d idle=%d", cfg.SessionLifetimeMinutes, cfg.SessionIdleMinutes)
	}
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GIN_MODE", "test")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("MAX_PAGES", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://b.example" {
		t.Fatalf("unexpected origins: %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.MaxPages != 50 {
		t.Fatalf("unexpected max pages: %d", cfg.MaxPages)
	}
}

func TestValidateReleaseRequiresSecret(t *testing.T) {
	cfg := &Config{
		GinMode:                "release",
		MaxFileSize:            1,
		MaxPages:               1,
		MaxFiles:               1,
		SessionLifetimeMinutes: 60,
		SessionIdleMinutes:     15,
		SummaryLocale:          "en-IN",
		QueueRedisURL:          "redis://localhost:6379/0",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without SESSION_SECRET")
	}
	cfg.SessionSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsNonPositiveLimits(t *testing.T) {
	cfg := &Config{GinMode: "debug", MaxFileSize: 0, MaxPages: 1, MaxFiles: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for MAX_FILE_SIZE=0")
	}
}

func TestValidateRejectsUnknownLocale(t *testing.T) {
	cfg := &Config{
		GinMode:                "debug",
		MaxFileSize:            1,
		MaxPages:               1,
		MaxFiles:               1,
		SessionLifetimeMinutes: 1,
		SessionIdleMinutes:     1,
		SummaryLocale:          "not a locale!",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for SUMMARY_LOCALE")
	}
	cfg.SummaryLocale = "hi-IN"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Locale().String(); got != "hi-IN" {
		t.Fatalf("unexpected locale: %s", got)
	}
}
