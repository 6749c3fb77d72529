package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/deptree/pkg/buildinfo"
	"github.com/matzehuels/deptree/pkg/cache"
	"github.com/matzehuels/deptree/pkg/config"
	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/registry"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display and cache key prefixes.
const appName = "deptree"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Deptree resolves npm package dependencies",
		Long: `Deptree resolves the direct and transitive dependencies of npm packages.

It can run as a REST service (deptree serve) or answer one-off lookups from
the command line. Registry responses are cached for 24 hours by default.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default $"+config.EnvFile+")")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.depsCommand())
	root.AddCommand(c.allDepsCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads configuration and attaches the logger to the command context.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level, _ := cfg.LogLevel()
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, c.Logger))
	return nil
}

// =============================================================================
// Resolver Factory
// =============================================================================

// resolveFlags are the flags shared by every command that resolves packages.
type resolveFlags struct {
	registry    string
	noCache     bool
	refresh     bool
	concurrency int
	maxNodes    int
}

func (f *resolveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.registry, "registry", "", "registry base URL (overrides config)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the manifest cache")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached manifests and refetch")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "concurrent registry requests (overrides config)")
	cmd.Flags().IntVar(&f.maxNodes, "max-nodes", 0, "maximum packages per walk (overrides config)")
}

// resolveConfig returns the loaded config with f's overrides applied.
func (c *CLI) resolveConfig(f resolveFlags) config.Config {
	cfg := c.cfg
	if f.registry != "" {
		cfg.Registry.URL = f.registry
	}
	if f.noCache {
		cfg.Cache.Backend = config.BackendNone
	}
	if f.concurrency > 0 {
		cfg.Resolver.Concurrency = f.concurrency
	}
	if f.maxNodes > 0 {
		cfg.Resolver.MaxNodes = f.maxNodes
	}
	return cfg
}

// newResolver builds a resolver from the loaded config and flag overrides.
// The returned close function releases the cache backend.
func (c *CLI) newResolver(ctx context.Context, f resolveFlags, progress func(deps.PackageRef)) (*deps.Resolver, func(), error) {
	cfg := c.resolveConfig(f)
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, nil, err
	}
	backend, err := newCache(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	rc := deps.NewResolutionCache(backend, cfg.Cache.TTL).WithLogger(c.Logger)
	if cfg.Cache.Prefix != "" {
		rc.WithKeyer(cache.NewScopedKeyer(cache.NewDefaultKeyer(), cfg.Cache.Prefix))
	}

	r := deps.New(fetcher, rc, deps.Options{
		Concurrency: cfg.Resolver.Concurrency,
		MaxNodes:    cfg.Resolver.MaxNodes,
		Refresh:     f.refresh,
		Logger:      c.Logger,
		Progress:    progress,
	})
	return r, func() { _ = rc.Close() }, nil
}

func newFetcher(cfg config.Config) (deps.Fetcher, error) {
	client, err := registry.NewClient(cfg.Registry.URL, cfg.Registry.Timeout, nil)
	if err != nil {
		return nil, err
	}
	return registry.WithRetry(client, cfg.Registry.Retries, cfg.Registry.RetryDelay), nil
}

func newCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	case config.BackendMemory, "":
		return cache.NewMemoryCache(cfg.Cache.SweepInterval), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// =============================================================================
// Arguments
// =============================================================================

// parsePackageArgs accepts "name", "name version" or "name@version".
// A leading "@" marks a scoped name, not a version separator.
func parsePackageArgs(args []string) (name, version string) {
	name = args[0]
	if len(args) > 1 {
		return name, args[1]
	}
	if i := strings.LastIndex(name, "@"); i > 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}
