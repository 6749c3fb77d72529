package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	apperr "github.com/matzehuels/deptree/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deptree.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
	if cfg.Addr() != "localhost:8000" {
		t.Errorf("Addr() = %q, want localhost:8000", cfg.Addr())
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
	}
	if cfg.Cache.SweepInterval != 2*time.Minute {
		t.Errorf("Cache.SweepInterval = %v, want 2m", cfg.Cache.SweepInterval)
	}
	if cfg.Server.WarmupDelay != time.Second {
		t.Errorf("Server.WarmupDelay = %v, want 1s", cfg.Server.WarmupDelay)
	}
	if cfg.Resolver.Concurrency != 20 || cfg.Resolver.MaxNodes != 5000 {
		t.Errorf("Resolver = %+v", cfg.Resolver)
	}
	if cfg.Registry.Retries != 0 {
		t.Errorf("Registry.Retries = %d, want 0", cfg.Registry.Retries)
	}
}

func TestLoadNoFile(t *testing.T) {
	t.Setenv(EnvFile, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000
legacy_errors = true
warmup_delay = "0s"
cors_origins = ["http://localhost:3000"]

[registry]
url = "https://mirror.example.com/npm"
retries = 2
retry_delay = "250ms"

[cache]
backend = "redis"
ttl = "1h"
redis_addr = "cache:6379"
redis_db = 3

[resolver]
concurrency = 4

[log]
level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9000 || !cfg.Server.LegacyErrors || cfg.Server.WarmupDelay != 0 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %q, want default kept", cfg.Server.Host)
	}
	if cfg.Registry.URL != "https://mirror.example.com/npm" || cfg.Registry.Retries != 2 || cfg.Registry.RetryDelay != 250*time.Millisecond {
		t.Errorf("Registry = %+v", cfg.Registry)
	}
	if cfg.Cache.Backend != BackendRedis || cfg.Cache.TTL != time.Hour || cfg.Cache.RedisAddr != "cache:6379" || cfg.Cache.RedisDB != 3 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Cache.SweepInterval != 2*time.Minute {
		t.Errorf("Cache.SweepInterval = %v, want default kept", cfg.Cache.SweepInterval)
	}
	if cfg.Resolver.Concurrency != 4 || cfg.Resolver.MaxNodes != 5000 {
		t.Errorf("Resolver = %+v", cfg.Resolver)
	}
	if level, _ := cfg.LogLevel(); level != log.DebugLevel {
		t.Errorf("LogLevel() = %v, want debug", level)
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 7000\n")
	t.Setenv(EnvFile, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[server\nport = 1"},
		{"unknown key", "[server]\nlisten = \"0.0.0.0\"\n"},
		{"bad backend", "[cache]\nbackend = \"memcached\"\n"},
		{"bad url", "[registry]\nurl = \"registry.npmjs.org\"\n"},
		{"zero concurrency", "[resolver]\nconcurrency = 0\n"},
		{"negative warmup", "[server]\nwarmup_delay = \"-1s\"\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
				t.Errorf("Load() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("Load() error = %v, want INVALID_CONFIG", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvFile, "")
	t.Setenv("DEPTREE_HOST", "0.0.0.0")
	t.Setenv("DEPTREE_PORT", "8080")
	t.Setenv("DEPTREE_REGISTRY_URL", "http://localhost:4873")
	t.Setenv("DEPTREE_CACHE_BACKEND", "none")
	t.Setenv("DEPTREE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.Registry.URL != "http://localhost:4873" {
		t.Errorf("Registry.URL = %q", cfg.Registry.URL)
	}
	if cfg.Cache.Backend != BackendNone {
		t.Errorf("Cache.Backend = %q", cfg.Cache.Backend)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestApplyEnvBadPort(t *testing.T) {
	t.Setenv("DEPTREE_PORT", "eighty")
	cfg := Default()
	if err := cfg.ApplyEnv(); !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("ApplyEnv() error = %v, want INVALID_CONFIG", err)
	}
}
