package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deptree/pkg/cache"
	"github.com/matzehuels/deptree/pkg/config"
	"github.com/matzehuels/deptree/pkg/deps"
)

// registryDocs maps "/name/version" paths to version documents.
var registryDocs = map[string]string{
	"/express/latest":    `{"name":"express","version":"4.18.2","dependencies":{"accepts":"~1.3.8","debug":"2.6.9"}}`,
	"/express/4.18.2":    `{"name":"express","version":"4.18.2","dependencies":{"accepts":"~1.3.8","debug":"2.6.9"}}`,
	"/accepts/1.3.8":     `{"name":"accepts","dependencies":{"mime-types":"~2.1.34"}}`,
	"/debug/2.6.9":       `{"name":"debug"}`,
	"/mime-types/2.1.34": `{"name":"mime-types","dependencies":{}}`,
}

func newTestRegistry(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		doc, ok := registryDocs[r.URL.Path]
		if !ok {
			http.Error(w, `{"error":"Not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, doc)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvFile, "")

	var logs, out bytes.Buffer
	c := New(&logs, log.InfoLevel)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandSubcommands(t *testing.T) {
	root := New(io.Discard, log.InfoLevel).RootCommand()

	want := []string{"serve", "deps", "alldeps", "graph", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("verbose") == nil {
		t.Error("missing --verbose flag")
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
}

func TestParsePackageArgs(t *testing.T) {
	tests := []struct {
		args        []string
		wantName    string
		wantVersion string
	}{
		{[]string{"express"}, "express", ""},
		{[]string{"express", "4.18.2"}, "express", "4.18.2"},
		{[]string{"express@4.18.2"}, "express", "4.18.2"},
		{[]string{"@babel/core"}, "@babel/core", ""},
		{[]string{"@babel/core@7.24.0"}, "@babel/core", "7.24.0"},
		{[]string{"@babel/core", "latest"}, "@babel/core", "latest"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			name, version := parsePackageArgs(tt.args)
			if name != tt.wantName || version != tt.wantVersion {
				t.Errorf("parsePackageArgs(%v) = (%q, %q), want (%q, %q)",
					tt.args, name, version, tt.wantName, tt.wantVersion)
			}
		})
	}
}

func TestResolveConfig(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)

	cfg := c.resolveConfig(resolveFlags{})
	if cfg.Registry.URL != config.Default().Registry.URL {
		t.Errorf("registry = %q, want default", cfg.Registry.URL)
	}

	cfg = c.resolveConfig(resolveFlags{
		registry:    "http://localhost:4873",
		noCache:     true,
		concurrency: 3,
		maxNodes:    10,
	})
	if cfg.Registry.URL != "http://localhost:4873" {
		t.Errorf("registry = %q", cfg.Registry.URL)
	}
	if cfg.Cache.Backend != config.BackendNone {
		t.Errorf("backend = %q, want %q", cfg.Cache.Backend, config.BackendNone)
	}
	if cfg.Resolver.Concurrency != 3 || cfg.Resolver.MaxNodes != 10 {
		t.Errorf("resolver = %+v", cfg.Resolver)
	}
	if c.cfg.Cache.Backend != config.BackendMemory {
		t.Error("resolveConfig should not modify the loaded config")
	}
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Cache.Backend = config.BackendNone
	c, err := newCache(ctx, cfg)
	if err != nil {
		t.Fatalf("newCache(none) error: %v", err)
	}
	if _, ok := c.(*cache.NullCache); !ok {
		t.Errorf("newCache(none) = %T, want *cache.NullCache", c)
	}

	cfg.Cache.Backend = config.BackendMemory
	c, err = newCache(ctx, cfg)
	if err != nil {
		t.Fatalf("newCache(memory) error: %v", err)
	}
	defer c.Close()
	if _, ok := c.(*cache.MemoryCache); !ok {
		t.Errorf("newCache(memory) = %T, want *cache.MemoryCache", c)
	}

	cfg.Cache.Backend = "memcached"
	if _, err := newCache(ctx, cfg); err == nil {
		t.Error("newCache(memcached) should fail")
	}
}

func TestNewFetcherInvalidURL(t *testing.T) {
	cfg := config.Default()
	cfg.Registry.URL = "ftp://registry"
	if _, err := newFetcher(cfg); err == nil {
		t.Error("newFetcher should reject non-HTTP registry URLs")
	}
}

func TestDepsCommandJSON(t *testing.T) {
	srv, _ := newTestRegistry(t)

	out, err := execute(t, "deps", "express", "--registry", srv.URL, "--json", "--no-cache")
	if err != nil {
		t.Fatalf("deps error: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	want := map[string]string{"accepts": "1.3.8", "debug": "2.6.9"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestDepsCommandVersionArg(t *testing.T) {
	srv, _ := newTestRegistry(t)

	out, err := execute(t, "deps", "express@4.18.2", "--registry", srv.URL, "--json", "--no-cache")
	if err != nil {
		t.Fatalf("deps error: %v", err)
	}
	if !strings.Contains(out, `"accepts": "1.3.8"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestDepsCommandTable(t *testing.T) {
	srv, _ := newTestRegistry(t)

	out, err := execute(t, "deps", "express", "--registry", srv.URL, "--no-cache")
	if err != nil {
		t.Fatalf("deps error: %v", err)
	}
	for _, want := range []string{"express@latest", "Package", "Version", "accepts", "1.3.8", "debug", "2.6.9"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAllDepsCommandJSON(t *testing.T) {
	srv, hits := newTestRegistry(t)

	out, err := execute(t, "alldeps", "express", "--registry", srv.URL, "--json")
	if err != nil {
		t.Fatalf("alldeps error: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(got) != 3 || got["mime-types"] != "2.1.34" {
		t.Errorf("got %v", got)
	}
	if n := hits.Load(); n != 4 {
		t.Errorf("registry hits = %d, want 4", n)
	}
}

func TestDepsCommandNotFound(t *testing.T) {
	srv, _ := newTestRegistry(t)

	_, err := execute(t, "deps", "no-such-package", "--registry", srv.URL, "--json")
	if err == nil {
		t.Fatal("expected error for missing package")
	}
	if !strings.Contains(err.Error(), "no-such-package") {
		t.Errorf("error should name the package: %v", err)
	}
}

func TestDepsCommandInvalidName(t *testing.T) {
	_, err := execute(t, "deps", "  ", "--json")
	if err == nil {
		t.Fatal("expected error for blank package name")
	}
}

func TestGraphFormat(t *testing.T) {
	tests := []struct {
		format, output string
		want           string
		wantErr        bool
	}{
		{"", "", formatJSON, false},
		{"", "out.json", formatJSON, false},
		{"", "out.svg", formatSVG, false},
		{"", "out.gv", formatDOT, false},
		{"dot", "out.svg", formatDOT, false},
		{"DOT", "", formatDOT, false},
		{"png", "", "", true},
		{"", "out.txt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format+"|"+tt.output, func(t *testing.T) {
			got, err := graphFormat(tt.format, tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("graphFormat(%q, %q) error = %v, wantErr %v", tt.format, tt.output, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("graphFormat(%q, %q) = %q, want %q", tt.format, tt.output, got, tt.want)
			}
		})
	}
}

func TestGraphCommandDOT(t *testing.T) {
	srv, _ := newTestRegistry(t)

	out, err := execute(t, "graph", "express", "--registry", srv.URL, "--format", "dot", "--no-cache")
	if err != nil {
		t.Fatalf("graph error: %v", err)
	}
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("expected DOT output, got:\n%s", out)
	}
	if !strings.Contains(out, "mime-types@2.1.34") {
		t.Errorf("DOT output missing transitive node:\n%s", out)
	}
}

func TestGraphCommandJSONFile(t *testing.T) {
	srv, _ := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "express.json")

	if _, err := execute(t, "graph", "express", "--registry", srv.URL, "-o", path, "--no-cache"); err != nil {
		t.Fatalf("graph error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var doc struct {
		Root  string            `json:"root"`
		Nodes []json.RawMessage `json:"nodes"`
		Edges []json.RawMessage `json:"edges"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc.Root != "express@latest" {
		t.Errorf("root = %q, want express@latest", doc.Root)
	}
	if len(doc.Nodes) != 4 || len(doc.Edges) != 3 {
		t.Errorf("nodes = %d, edges = %d, want 4 and 3", len(doc.Nodes), len(doc.Edges))
	}
}

func TestProgressModel(t *testing.T) {
	var m any = newProgressModel("express@latest")

	m, _ = m.(ProgressModel).Update(discoveredMsg{ref: mustRef(t, "accepts", "1.3.8")})
	m, _ = m.(ProgressModel).Update(discoveredMsg{ref: mustRef(t, "debug", "2.6.9")})
	pm := m.(ProgressModel)
	if pm.Count != 2 || pm.Last != "debug@2.6.9" {
		t.Errorf("Count = %d, Last = %q", pm.Count, pm.Last)
	}
	if view := pm.View(); !strings.Contains(view, "2 packages") {
		t.Errorf("View() = %q", view)
	}

	m, cmd := pm.Update(resolvedMsg{result: map[string]string{"a": "1.0.0"}})
	pm = m.(ProgressModel)
	if !pm.done || cmd == nil {
		t.Error("resolvedMsg should finish the model and quit")
	}
	if pm.View() != "" {
		t.Error("finished model should render nothing")
	}
}

func mustRef(t *testing.T, name, version string) deps.PackageRef {
	t.Helper()
	ref, err := deps.NewRef(name, version)
	if err != nil {
		t.Fatalf("NewRef(%q, %q): %v", name, version, err)
	}
	return ref
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := execute(t, "completion", shell)
			if err != nil {
				t.Fatalf("completion %s error: %v", shell, err)
			}
			if !strings.Contains(out, "deptree") {
				t.Errorf("completion %s output does not mention deptree", shell)
			}
		})
	}

	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}
