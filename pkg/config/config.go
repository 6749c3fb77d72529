// Package config loads deptree settings from a TOML file and the environment.
//
// Precedence, lowest to highest: built-in defaults, the TOML file, DEPTREE_*
// environment variables, command-line flags (applied by the caller).
//
//	[server]
//	host = "localhost"
//	port = 8000
//	warmup_delay = "1s"
//
//	[registry]
//	url = "https://registry.npmjs.org"
//	timeout = "10s"
//
//	[cache]
//	backend = "memory"   # memory | redis | none
//	ttl = "24h"
//	sweep_interval = "2m"
//
//	[resolver]
//	concurrency = 20
//	max_nodes = 5000
//
//	[log]
//	level = "info"
package config

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	apperr "github.com/matzehuels/deptree/pkg/errors"
)

// EnvFile names the environment variable holding the config file path.
const EnvFile = "DEPTREE_CONFIG"

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Config is the complete deptree configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Registry RegistryConfig `toml:"registry"`
	Cache    CacheConfig    `toml:"cache"`
	Resolver ResolverConfig `toml:"resolver"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig configures the REST API.
type ServerConfig struct {
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	LegacyErrors    bool          `toml:"legacy_errors"`    // 400 + plain-text error bodies
	WarmupDelay     time.Duration `toml:"warmup_delay"`     // 0 disables warm-up
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"` // Grace period for in-flight requests
	CORSOrigins     []string      `toml:"cors_origins"`     // Empty disables CORS headers
}

// RegistryConfig configures the package registry client.
type RegistryConfig struct {
	URL        string        `toml:"url"`
	Timeout    time.Duration `toml:"timeout"`
	Retries    int           `toml:"retries"` // Additional attempts for transient failures
	RetryDelay time.Duration `toml:"retry_delay"`
}

// CacheConfig configures the manifest cache.
type CacheConfig struct {
	Backend       string        `toml:"backend"`
	TTL           time.Duration `toml:"ttl"`
	SweepInterval time.Duration `toml:"sweep_interval"`
	Prefix        string        `toml:"prefix"` // Key prefix for shared backends
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
}

// ResolverConfig bounds the transitive walk.
type ResolverConfig struct {
	Concurrency int `toml:"concurrency"`
	MaxNodes    int `toml:"max_nodes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8000,
			WarmupDelay:     time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Registry: RegistryConfig{
			URL:        "https://registry.npmjs.org",
			Timeout:    10 * time.Second,
			RetryDelay: time.Second,
		},
		Cache: CacheConfig{
			Backend:       BackendMemory,
			TTL:           24 * time.Hour,
			SweepInterval: 2 * time.Minute,
			RedisAddr:     "localhost:6379",
		},
		Resolver: ResolverConfig{
			Concurrency: 20,
			MaxNodes:    5000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the file at path over the defaults, then applies environment
// overrides. An empty path falls back to $DEPTREE_CONFIG; when that is unset
// too, only defaults and environment are used. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "config file %s not found", path)
			}
			return Config{}, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "parse %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, apperr.New(apperr.ErrCodeInvalidConfig, "unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from DEPTREE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("DEPTREE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("DEPTREE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "DEPTREE_PORT")
		}
		c.Server.Port = port
	}
	if v := os.Getenv("DEPTREE_REGISTRY_URL"); v != "" {
		c.Registry.URL = v
	}
	if v := os.Getenv("DEPTREE_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("DEPTREE_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("DEPTREE_REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}
	if v := os.Getenv("DEPTREE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return apperr.New(apperr.ErrCodeInvalidConfig, "server.port %d out of range", c.Server.Port)
	case c.Server.WarmupDelay < 0:
		return apperr.New(apperr.ErrCodeInvalidConfig, "server.warmup_delay must not be negative")
	case c.Registry.Timeout <= 0:
		return apperr.New(apperr.ErrCodeInvalidConfig, "registry.timeout must be positive")
	case c.Registry.Retries < 0:
		return apperr.New(apperr.ErrCodeInvalidConfig, "registry.retries must not be negative")
	case c.Cache.TTL <= 0:
		return apperr.New(apperr.ErrCodeInvalidConfig, "cache.ttl must be positive")
	case c.Cache.SweepInterval <= 0:
		return apperr.New(apperr.ErrCodeInvalidConfig, "cache.sweep_interval must be positive")
	case c.Resolver.Concurrency < 1:
		return apperr.New(apperr.ErrCodeInvalidConfig, "resolver.concurrency must be at least 1")
	case c.Resolver.MaxNodes < 1:
		return apperr.New(apperr.ErrCodeInvalidConfig, "resolver.max_nodes must be at least 1")
	}

	if err := apperr.ValidateURL(c.Registry.URL); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "registry.url")
	}
	switch c.Cache.Backend {
	case BackendMemory, BackendNone:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return apperr.New(apperr.ErrCodeInvalidConfig, "cache.redis_addr required for redis backend")
		}
	default:
		return apperr.New(apperr.ErrCodeInvalidConfig, "unknown cache.backend %q", c.Cache.Backend)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// Addr returns the server listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (log.Level, error) {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "log.level")
	}
	return level, nil
}
