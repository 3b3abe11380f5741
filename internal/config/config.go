// Package config loads and saves the user configuration in ~/.treno.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"treno/internal/store"
)

const (
	EnvConfigDir = "TRENO_CONFIG_DIR"
	EnvDataDir   = "TRENO_DIR"
	EnvBackend   = "TRENO_BACKEND"
	EnvLogLevel  = "TRENO_LOG_LEVEL"

	DefaultWebAddr = "127.0.0.1:8787"

	fileName = "config.json"
)

type Config struct {
	// DataDir holds the storage backend files. Defaults to <config dir>/data.
	DataDir string `json:"dataDir,omitempty" yaml:"dataDir,omitempty"`
	// Backend is one of sqlite, files, memory.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// QuotaBytes caps stored data; nil means store.DefaultQuotaBytes and 0 disables the cap.
	QuotaBytes *int64 `json:"quotaBytes,omitempty" yaml:"quotaBytes,omitempty"`

	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`
	Web WebConfig `json:"web,omitempty" yaml:"web,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	// File enables a rotating log file in addition to stderr.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

type WebConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

func Dir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.treno).
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".treno"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads the config file. A missing file yields an empty config.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Keep the previous file around; failures here never block the save.
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = store.AtomicWriteFile(dir, fileName+".bak.*.tmp", path+".bak", prev, 0o644)
	}
	return store.AtomicWriteFile(dir, fileName+".*.tmp", path, b, 0o600)
}

// Overrides are values from flags; empty fields are unset.
type Overrides struct {
	DataDir  string
	Backend  string
	LogLevel string
	LogFile  string
	WebAddr  string
}

// Resolved is the effective configuration after precedence is applied.
type Resolved struct {
	DataDir    string `json:"dataDir" yaml:"dataDir"`
	Backend    string `json:"backend" yaml:"backend"`
	QuotaBytes int64  `json:"quotaBytes" yaml:"quotaBytes"`
	LogLevel   string `json:"logLevel" yaml:"logLevel"`
	LogFormat  string `json:"logFormat" yaml:"logFormat"`
	LogFile    string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	WebAddr    string `json:"webAddr" yaml:"webAddr"`
	ConfigPath string `json:"configPath" yaml:"configPath"`
}

// Resolve applies flags > env > file > defaults.
func Resolve(cfg *Config, o Overrides) (Resolved, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	path, err := Path()
	if err != nil {
		return Resolved{}, err
	}

	r := Resolved{
		DataDir:    first(o.DataDir, os.Getenv(EnvDataDir), cfg.DataDir),
		Backend:    first(o.Backend, os.Getenv(EnvBackend), cfg.Backend, string(store.BackendSQLite)),
		QuotaBytes: store.DefaultQuotaBytes,
		LogLevel:   first(o.LogLevel, os.Getenv(EnvLogLevel), cfg.Log.Level, "info"),
		LogFormat:  first(cfg.Log.Format, "text"),
		LogFile:    first(o.LogFile, cfg.Log.File),
		WebAddr:    first(o.WebAddr, cfg.Web.Addr, DefaultWebAddr),
		ConfigPath: path,
	}
	if cfg.QuotaBytes != nil {
		r.QuotaBytes = *cfg.QuotaBytes
	}
	if r.DataDir == "" {
		r.DataDir = filepath.Join(filepath.Dir(path), "data")
	}
	if _, err := store.ParseBackend(r.Backend); err != nil {
		return Resolved{}, err
	}
	return r, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
