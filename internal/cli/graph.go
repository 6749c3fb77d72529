package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/graph"
	"github.com/matzehuels/deptree/pkg/render/nodelink"
)

// Graph output formats.
const (
	formatJSON = "json"
	formatDOT  = "dot"
	formatSVG  = "svg"
)

// graphOpts holds options for the graph command.
type graphOpts struct {
	resolve  resolveFlags
	format   string
	output   string
	detailed bool
}

// graphCommand creates the graph command for exporting dependency graphs.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOpts

	cmd := &cobra.Command{
		Use:   "graph <package> [version]",
		Short: "Export the dependency graph as JSON, DOT or SVG",
		Long: `Walk the dependency tree of a package and export every package and edge.

The format defaults to the output file's extension, or JSON when writing
to stdout. Superseded versions are drawn dashed in DOT and SVG output.`,
		Example: `  deptree graph express -o express.svg
  deptree graph react 18.2.0 --format dot | dot -Tpng > react.png`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			format, err := graphFormat(opts.format, opts.output)
			if err != nil {
				return err
			}

			name, version := parsePackageArgs(args)
			ref, err := deps.NewRef(name, version)
			if err != nil {
				return err
			}

			resolver, closeCache, err := c.newResolver(ctx, opts.resolve, nil)
			if err != nil {
				return err
			}
			defer closeCache()

			prog := newProgress(logger)
			spinner := newSpinner(ctx, os.Stderr, fmt.Sprintf("Resolving %s...", ref))
			spinner.Start()
			g, err := resolver.ResolveGraph(ctx, ref.Name, ref.Version)
			spinner.Stop()
			if err != nil {
				return err
			}

			if err := exportGraph(cmd.OutOrStdout(), g, format, opts); err != nil {
				return err
			}

			if opts.output != "" {
				printSuccess("Wrote %s graph", strings.ToUpper(format))
				printFile(opts.output)
				printStats(g.NodeCount(), g.EdgeCount(), len(g.Conflicts()), g.HasCycle())
				printConflicts(g.Conflicts())
			}
			prog.done("Exported graph", "package", ref, "format", format, "nodes", g.NodeCount(), "edges", g.EdgeCount())
			return nil
		},
	}

	opts.resolve.register(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: json, dot or svg")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include dependency counts in node labels")

	return cmd
}

// graphFormat picks the explicit format, else the output extension, else JSON.
func graphFormat(format, output string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(output), ".")
	}
	switch strings.ToLower(format) {
	case "", formatJSON:
		return formatJSON, nil
	case formatDOT, "gv":
		return formatDOT, nil
	case formatSVG:
		return formatSVG, nil
	default:
		return "", fmt.Errorf("unsupported graph format %q (want json, dot or svg)", format)
	}
}

// exportGraph writes g in format to opts.output, or to w when no output
// file is set.
func exportGraph(w io.Writer, g *graph.Graph, format string, opts graphOpts) error {
	var data []byte
	switch format {
	case formatJSON:
		if opts.output == "" {
			return graph.Write(g, w)
		}
		return graph.WriteFile(g, opts.output)
	case formatDOT:
		data = []byte(nodelink.ToDOT(g, nodelink.Options{Detailed: opts.detailed}))
	case formatSVG:
		svg, err := nodelink.RenderSVG(nodelink.ToDOT(g, nodelink.Options{Detailed: opts.detailed}))
		if err != nil {
			return err
		}
		data = svg
	default:
		return fmt.Errorf("unsupported graph format %q", format)
	}

	if opts.output == "" {
		_, err := w.Write(data)
		return err
	}
	return os.WriteFile(opts.output, data, 0o644)
}

// printConflicts lists packages reached at more than one version.
func printConflicts(conflicts []graph.Conflict) {
	if len(conflicts) == 0 {
		return
	}
	printWarning("%d packages resolved at more than one version", len(conflicts))
	for _, c := range conflicts {
		printDetail("%s: %s (kept %s)", c.Name, strings.Join(c.Versions, ", "), c.Chosen)
	}
}
