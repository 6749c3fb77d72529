package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deptree/pkg/deps"
)

// resolveMode selects between the direct and transitive lookups.
type resolveMode int

const (
	modeDirect resolveMode = iota
	modeTransitive
)

func (m resolveMode) String() string {
	if m == modeDirect {
		return "direct"
	}
	return "transitive"
}

// depsOpts holds options for the deps and alldeps commands.
type depsOpts struct {
	resolve  resolveFlags
	json     bool
	progress bool
}

// depsCommand creates the deps command for direct dependency lookups.
func (c *CLI) depsCommand() *cobra.Command {
	var opts depsOpts

	cmd := &cobra.Command{
		Use:   "deps <package> [version]",
		Short: "Print the direct dependencies of a package",
		Long: `Print the dependencies a package declares, with each version specifier
reduced to a concrete version.

The version defaults to "latest". Scoped names are supported, and
"name@version" is accepted as a single argument.`,
		Example: `  deptree deps express
  deptree deps express 4.18.2
  deptree deps @babel/core@7.24.0 --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), cmd.OutOrStdout(), modeDirect, args, opts)
		},
	}

	opts.resolve.register(cmd)
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")

	return cmd
}

// allDepsCommand creates the alldeps command for transitive lookups.
func (c *CLI) allDepsCommand() *cobra.Command {
	var opts depsOpts

	cmd := &cobra.Command{
		Use:   "alldeps <package> [version]",
		Short: "Print the transitive dependencies of a package",
		Long: `Walk the dependency tree of a package and print every package reached,
excluding the package itself.

When two paths reach the same package at different versions, the higher
version is reported. Use --progress for a live view of the walk.`,
		Example: `  deptree alldeps express
  deptree alldeps react 18.2.0 --progress
  deptree alldeps lodash --json --no-cache`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), cmd.OutOrStdout(), modeTransitive, args, opts)
		},
	}

	opts.resolve.register(cmd)
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show an interactive progress view")

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, w io.Writer, mode resolveMode, args []string, opts depsOpts) error {
	logger := loggerFromContext(ctx)
	name, version := parsePackageArgs(args)
	ref, err := deps.NewRef(name, version)
	if err != nil {
		return err
	}
	logger.Debug("Resolving", "package", ref, "mode", mode)

	var (
		ui         *progressUI
		spinner    *Spinner
		onDiscover func(deps.PackageRef)
	)
	switch {
	case opts.json:
	case opts.progress:
		ui = newProgressUI(ctx, ref.String())
		onDiscover = ui.discovered
	default:
		spinner = newSpinner(ctx, os.Stderr, fmt.Sprintf("Resolving %s...", ref))
		var seen atomic.Int64
		onDiscover = func(deps.PackageRef) {
			spinner.SetMessage(fmt.Sprintf("Resolving %s... %d packages", ref, seen.Add(1)))
		}
	}

	resolver, closeCache, err := c.newResolver(ctx, opts.resolve, onDiscover)
	if err != nil {
		return err
	}
	defer closeCache()

	resolve := func(ctx context.Context) (deps.Result, error) {
		if mode == modeDirect {
			return resolver.ResolveDirect(ctx, ref.Name, ref.Version)
		}
		return resolver.ResolveTransitive(ctx, ref.Name, ref.Version)
	}

	prog := newProgress(logger)
	var res deps.Result
	switch {
	case ui != nil:
		res, err = ui.run(ctx, resolve)
	case spinner != nil:
		spinner.Start()
		res, err = resolve(ctx)
		if err != nil {
			spinner.Stop()
		} else {
			spinner.StopWithSuccess(fmt.Sprintf("Resolved %s", ref))
		}
	default:
		res, err = resolve(ctx)
	}
	if err != nil {
		return err
	}

	if opts.json {
		return writeResultJSON(w, res)
	}
	printResult(w, ref, res)
	prog.done("Resolved", "package", ref, "mode", mode, "count", len(res))
	return nil
}

func writeResultJSON(w io.Writer, res deps.Result) error {
	if res == nil {
		res = deps.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
