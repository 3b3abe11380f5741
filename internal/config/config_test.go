package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"treno/internal/store"
)

func TestSave_KeepsBackup(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	if err := Save(&Config{Backend: "files"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Save(&Config{Backend: "memory"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "memory" {
		t.Fatalf("Backend = %q", cfg.Backend)
	}
	bak, err := os.ReadFile(filepath.Join(dir, "config.json.bak"))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !strings.Contains(string(bak), `"files"`) {
		t.Fatalf("backup = %s", bak)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(EnvConfigDir, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "" || cfg.QuotaBytes != nil {
		t.Fatalf("expected empty config, got %#v", cfg)
	}
}

func TestResolve_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvBackend, "files")
	t.Setenv(EnvLogLevel, "")

	zero := int64(0)
	cfg := &Config{Backend: "memory", QuotaBytes: &zero, Log: LogConfig{Level: "warn"}}

	r, err := Resolve(cfg, Overrides{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Backend != "files" {
		t.Fatalf("env should beat the file: %q", r.Backend)
	}
	if r.LogLevel != "warn" || r.QuotaBytes != 0 || r.WebAddr != DefaultWebAddr {
		t.Fatalf("resolved = %#v", r)
	}
	if r.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("DataDir = %q", r.DataDir)
	}

	r, err = Resolve(cfg, Overrides{Backend: "sqlite", DataDir: "/tmp/x"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Backend != "sqlite" || r.DataDir != "/tmp/x" {
		t.Fatalf("flags should win: %#v", r)
	}

	r, err = Resolve(nil, Overrides{Backend: "sqlite"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.QuotaBytes != store.DefaultQuotaBytes {
		t.Fatalf("QuotaBytes = %d", r.QuotaBytes)
	}

	if _, err := Resolve(nil, Overrides{Backend: "redis"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
