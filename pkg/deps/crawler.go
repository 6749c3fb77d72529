package deps

import (
	"context"
	"errors"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	apperr "github.com/matzehuels/deptree/pkg/errors"
	"github.com/matzehuels/deptree/pkg/graph"
)

// crawler walks the dependency graph breadth-first with a bounded pool of
// fetch workers. Only the collector goroutine touches visited, acc, versions
// and g; workers see nothing but the jobs and results channels.
type crawler struct {
	r    *Resolver
	root PackageRef
	g    *graph.Graph // nil unless a graph was requested

	jobs    chan PackageRef
	results chan result

	visited  map[PackageRef]bool // fetch targets
	merged   map[PackageRef]bool // declared name and version pairs
	acc      Result
	versions map[string][]string
	queue    []PackageRef
	pending  int
	fetched  int
}

type result struct {
	ref      PackageRef
	manifest Manifest
}

func (r *Resolver) crawl(ctx context.Context, root PackageRef, g *graph.Graph) (*crawler, error) {
	c := &crawler{
		r:        r,
		root:     root,
		g:        g,
		jobs:     make(chan PackageRef),
		results:  make(chan result, r.opts.Concurrency),
		visited:  map[PackageRef]bool{root: true},
		merged:   map[PackageRef]bool{root: true},
		acc:      Result{},
		versions: map[string][]string{},
	}
	if g != nil {
		id := graph.NodeID(root.Name, root.Version)
		_ = g.AddNode(graph.Node{ID: id, Name: root.Name, Version: root.Version})
		g.SetRoot(id)
	}
	return c, c.run(ctx)
}

func (c *crawler) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(ctx)
	for range c.r.opts.Concurrency {
		eg.Go(func() error { return c.worker(egCtx) })
	}

	c.enqueue(c.root)
	err := c.collect(egCtx)

	cancel()
	close(c.jobs)
	_ = eg.Wait()

	if err != nil {
		return err
	}
	c.recordConflicts()
	return nil
}

// worker fetches manifests until jobs is closed. The first fetch error ends
// the worker and, through the errgroup, cancels the whole walk.
func (c *crawler) worker(ctx context.Context) error {
	for ref := range c.jobs {
		m, err := c.r.manifest(ctx, ref)
		if err != nil {
			return err
		}
		select {
		case c.results <- result{ref: ref, manifest: m}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *crawler) enqueue(ref PackageRef) {
	c.queue = append(c.queue, ref)
	c.pending++
}

// collect hands queued refs to workers and merges their results until no
// work is outstanding. When the errgroup context is cancelled the cause is
// either the first worker error or the caller's cancellation.
func (c *crawler) collect(ctx context.Context) error {
	for c.pending > 0 {
		var (
			send chan<- PackageRef
			next PackageRef
		)
		if len(c.queue) > 0 {
			send, next = c.jobs, c.queue[0]
		}

		select {
		case send <- next:
			c.queue = c.queue[1:]
		case res := <-c.results:
			c.pending--
			c.fetched++
			if err := c.handle(res); err != nil {
				return err
			}
		case <-ctx.Done():
			err := context.Cause(ctx)
			if errors.Is(err, context.DeadlineExceeded) {
				return &ResolveError{Ref: c.root, Err: apperr.Wrap(apperr.ErrCodeTimeout, err, "resolution timed out")}
			}
			return err
		}
	}
	return nil
}

// handle merges one fetched manifest. Each entry lands in the result under
// its declared name; only fetchable targets not yet visited are expanded.
func (c *crawler) handle(res result) error {
	for _, name := range res.manifest.Names() {
		dep := ParseDependency(name, res.manifest[name])
		c.addEdge(res.ref, dep.Target)

		if declared := (PackageRef{Name: dep.Name, Version: dep.Version}); !c.merged[declared] {
			c.merged[declared] = true
			c.merge(declared)
		}

		if c.visited[dep.Target] {
			continue
		}
		c.visited[dep.Target] = true
		if len(c.visited)-1 > c.r.opts.MaxNodes {
			return &ResolveError{
				Ref: c.root,
				Err: apperr.New(apperr.ErrCodeLimitExceeded, "more than %d packages reached", c.r.opts.MaxNodes),
			}
		}

		c.r.opts.Progress(dep.Target)
		if !dep.Fetchable {
			c.r.opts.Logger.Debug("not expanding", "package", dep.Name, "specifier", res.manifest[name])
			continue
		}
		c.enqueue(dep.Target)
	}
	return nil
}

// merge adds dep, keyed by declared name, to the accumulated result. A name seen at a different
// version keeps the higher of the two.
func (c *crawler) merge(dep PackageRef) {
	c.versions[dep.Name] = append(c.versions[dep.Name], dep.Version)

	prev, ok := c.acc[dep.Name]
	if !ok {
		c.acc[dep.Name] = dep.Version
		return
	}
	chosen := higherVersion(prev, dep.Version)
	c.acc[dep.Name] = chosen
	c.r.opts.Logger.Debug("version conflict", "package", dep.Name, "versions", []string{prev, dep.Version}, "chosen", chosen)
}

func (c *crawler) addEdge(from, to PackageRef) {
	if c.g == nil {
		return
	}
	toID := graph.NodeID(to.Name, to.Version)
	if _, ok := c.g.Node(toID); !ok {
		_ = c.g.AddNode(graph.Node{ID: toID, Name: to.Name, Version: to.Version})
	}
	_ = c.g.AddEdge(graph.Edge{From: graph.NodeID(from.Name, from.Version), To: toID})
}

func (c *crawler) recordConflicts() {
	if c.g == nil {
		return
	}
	for _, name := range slices.Sorted(maps.Keys(c.versions)) {
		vs := c.versions[name]
		if len(vs) < 2 {
			continue
		}
		vs = slices.Clone(vs)
		slices.Sort(vs)
		c.g.AddConflict(graph.Conflict{Name: name, Versions: vs, Chosen: c.acc[name]})
	}
}
