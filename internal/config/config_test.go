package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AI_API_KEYS", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Runtime.Dev {
		t.Fatalf("expected dev runtime flag")
	}
	if cfg.AI.RequestTimeout != 300*time.Second || cfg.AI.MaxRetries != 3 {
		t.Fatalf("unexpected executor defaults: %v %d", cfg.AI.RequestTimeout, cfg.AI.MaxRetries)
	}
	if cfg.AI.RetryDelay != 10*time.Second || cfg.AI.OverloadDelay != 600*time.Second {
		t.Fatalf("unexpected delay defaults: %v %v", cfg.AI.RetryDelay, cfg.AI.OverloadDelay)
	}
	if cfg.Audio.SizeCeilingBytes != 20*1024*1024 || cfg.Audio.SegmentSeconds != 1800 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.SegmentLength() != 30*time.Minute {
		t.Fatalf("unexpected segment length %v", cfg.SegmentLength())
	}
	if cfg.Admin.Port != 8080 {
		t.Fatalf("unexpected admin port %d", cfg.Admin.Port)
	}
	if cfg.Storage.Backend != "file" {
		t.Fatalf("expected file backend, got %q", cfg.Storage.Backend)
	}
	if cfg.QuotaLocation().String() != "America/Los_Angeles" {
		t.Fatalf("unexpected quota zone %s", cfg.QuotaLocation())
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	p := writeConfig(t, `
log:
  level: debug
ai:
  keys: ["k1"]
  max_retries: 1
  request_timeout: 5s
audio:
  size_ceiling_bytes: 1024
`)
	t.Setenv("AI_API_KEYS", "k2, k3")

	cfg, err := LoadConfig(p, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(cfg.AI.Keys); got != 3 {
		t.Fatalf("expected 3 keys, got %d (%v)", got, cfg.AI.Keys)
	}
	if cfg.AI.Keys[1] != "k2" || cfg.AI.Keys[2] != "k3" {
		t.Fatalf("env keys should be trimmed and appended: %v", cfg.AI.Keys)
	}
	if cfg.AI.MaxRetries != 1 || cfg.AI.RequestTimeout != 5*time.Second {
		t.Fatalf("file values should win over defaults: %+v", cfg.AI)
	}
	if cfg.Audio.SizeCeilingBytes != 1024 {
		t.Fatalf("expected ceiling 1024, got %d", cfg.Audio.SizeCeilingBytes)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	t.Run("postgres needs url", func(t *testing.T) {
		p := writeConfig(t, "storage:\n  backend: postgres\n")
		if _, err := LoadConfig(p, false); err == nil {
			t.Fatalf("expected error for postgres backend without database url")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		p := writeConfig(t, "storage:\n  backend: s3\n")
		if _, err := LoadConfig(p, false); err == nil {
			t.Fatalf("expected error for unknown backend")
		}
	})

	t.Run("bad zone", func(t *testing.T) {
		p := writeConfig(t, "ai:\n  quota_timezone: Mars/Olympus\n")
		if _, err := LoadConfig(p, false); err == nil {
			t.Fatalf("expected error for unknown zone")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		p := writeConfig(t, "ai: [")
		if _, err := LoadConfig(p, false); err == nil {
			t.Fatalf("expected parse error")
		}
	})
}
