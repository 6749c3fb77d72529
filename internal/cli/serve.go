package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deptree/pkg/api"
)

// serveOpts holds flag overrides for the serve command.
type serveOpts struct {
	resolve      resolveFlags
	host         string
	port         int
	legacyErrors bool
	warmupDelay  time.Duration
}

// serveCommand creates the serve command that runs the REST API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		Long: `Serve dependency lookups over HTTP.

Endpoints:
  GET /api/v1/deps/{package}[/{version}]      direct dependencies
  GET /api/v1/alldeps/{package}[/{version}]   transitive dependencies
  GET /api/v1/graph/{package}[/{version}]     dependency graph (JSON or DOT)
  GET /healthz                                health and build info

Scoped names must be URL-encoded (@babel%2Fcore).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.resolveConfig(opts.resolve)
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = opts.host
			}
			if flags.Changed("port") {
				cfg.Server.Port = opts.port
			}
			if flags.Changed("legacy-errors") {
				cfg.Server.LegacyErrors = opts.legacyErrors
			}
			if flags.Changed("warmup-delay") {
				cfg.Server.WarmupDelay = opts.warmupDelay
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			resolver, closeCache, err := c.newResolver(ctx, opts.resolve, nil)
			if err != nil {
				return err
			}
			defer closeCache()

			srv := api.New(resolver, api.Options{
				LegacyErrors:    cfg.Server.LegacyErrors,
				WarmupDelay:     cfg.Server.WarmupDelay,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				CORSOrigins:     cfg.Server.CORSOrigins,
				Logger:          loggerFromContext(ctx),
			})
			printInfo("Listening on %s", StyleLink.Render("http://"+cfg.Addr()))
			printKeyValue("Registry", cfg.Registry.URL)
			printKeyValue("Cache", cfg.Cache.Backend)
			return srv.ListenAndServe(ctx, cfg.Addr())
		},
	}

	opts.resolve.register(cmd)
	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen port (overrides config)")
	cmd.Flags().BoolVar(&opts.legacyErrors, "legacy-errors", false, "answer every failure with 400 text/plain")
	cmd.Flags().DurationVar(&opts.warmupDelay, "warmup-delay", 0, "delay before warming the transitive cache (0 disables)")

	return cmd
}
