package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Uploads.MaxBytes != DefaultMaxUploadBytes {
		t.Fatalf("max bytes %d", cfg.Uploads.MaxBytes)
	}
	if cfg.Lifecycle.AllowCancelAfterSNS {
		t.Fatalf("cancel after sns should default to false")
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("uploads:\n  max_bytes: 1024\nlifecycle:\n  allow_cancel_after_sns: true\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Uploads.MaxBytes != 1024 || !cfg.Lifecycle.AllowCancelAfterSNS {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Uploads.Extensions) == 0 || cfg.Storage.MediaDir != "media" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"oversize":  "uploads:\n  max_bytes: 3221225472\n",
		"extension": "uploads:\n  extensions: [mp4]\n",
		"retries":   "uploads:\n  version_retries: 0\n",
		"webhook":   "webhooks:\n  - url: \"\"\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("missing file should yield defaults: %v", err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "campaignline.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load generated default: %v", err)
	}
}

func TestLoadServeEnv(t *testing.T) {
	t.Setenv("CAMPAIGNLINE_JWT_SECRET", "s3cret")
	t.Setenv("CAMPAIGNLINE_ADDR", "0.0.0.0:9000")
	t.Setenv("CAMPAIGNLINE_SHUTDOWN_TIMEOUT", "10s")
	cfg, err := LoadServeEnv()
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9000" || cfg.BasePath != "/v0" || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected env config: %+v", cfg)
	}
	t.Setenv("CAMPAIGNLINE_JWT_SECRET", "")
	if _, err := LoadServeEnv(); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
