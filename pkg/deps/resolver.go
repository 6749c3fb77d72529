package deps

import (
	"context"
	"time"

	"github.com/matzehuels/deptree/pkg/graph"
	"github.com/matzehuels/deptree/pkg/observability"
)

// Resolver computes direct and transitive dependency sets, fetching manifests
// through a [ResolutionCache] so that repeated lookups of the same
// (name, version) stay off the network.
//
// A Resolver is safe for concurrent use; the cache is the only state shared
// between calls.
type Resolver struct {
	fetcher Fetcher
	cache   *ResolutionCache
	opts    Options
}

// New creates a Resolver. A nil cache disables caching.
func New(fetcher Fetcher, cache *ResolutionCache, opts Options) *Resolver {
	if cache == nil {
		cache = NewResolutionCache(nil, 0)
	}
	return &Resolver{fetcher: fetcher, cache: cache, opts: opts.WithDefaults()}
}

// Options returns the effective options, defaults applied.
func (r *Resolver) Options() Options { return r.opts }

// ResolveDirect returns the declared dependencies of name at version, each
// reduced to a concrete version by [ParseDependency]. An empty version means
// [Latest]. Nothing is recursed into.
func (r *Resolver) ResolveDirect(ctx context.Context, name, version string) (Result, error) {
	ref, err := NewRef(name, version)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	observability.Resolver().OnResolveStart(ctx, "direct", ref.String())

	m, err := r.manifest(ctx, ref)
	if err != nil {
		observability.Resolver().OnResolveComplete(ctx, "direct", ref.String(), 0, time.Since(start), err)
		return nil, err
	}

	res := m.Resolve()
	observability.Resolver().OnResolveComplete(ctx, "direct", ref.String(), len(res), time.Since(start), nil)
	r.opts.Logger.Debug("resolved direct", "package", ref, "count", len(res))
	return res, nil
}

// ResolveTransitive returns the full dependency closure of name at version,
// keyed by package name. The root package itself is not part of the result.
//
// Every distinct (name, version) is fetched at most once per call. When two
// paths resolve the same name to different versions both are expanded and the
// higher version is kept. Any fetch failure aborts the walk and is returned as
// a [*ResolveError]; no partial result is returned.
func (r *Resolver) ResolveTransitive(ctx context.Context, name, version string) (Result, error) {
	ref, err := NewRef(name, version)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	observability.Resolver().OnResolveStart(ctx, "transitive", ref.String())

	c, err := r.crawl(ctx, ref, nil)
	if err != nil {
		observability.Resolver().OnResolveComplete(ctx, "transitive", ref.String(), 0, time.Since(start), err)
		return nil, err
	}

	observability.Resolver().OnResolveComplete(ctx, "transitive", ref.String(), len(c.acc), time.Since(start), nil)
	r.opts.Logger.Debug("resolved transitive", "package", ref, "count", len(c.acc), "fetched", c.fetched)
	return c.acc, nil
}

// ResolveGraph performs the same walk as [Resolver.ResolveTransitive] and
// returns every (name, version) reached as a node, with an edge from each
// package to each of its dependencies. The root node carries the requested
// version and is marked with [graph.Graph.SetRoot].
func (r *Resolver) ResolveGraph(ctx context.Context, name, version string) (*graph.Graph, error) {
	ref, err := NewRef(name, version)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	observability.Resolver().OnResolveStart(ctx, "graph", ref.String())

	g := graph.New()
	if _, err := r.crawl(ctx, ref, g); err != nil {
		observability.Resolver().OnResolveComplete(ctx, "graph", ref.String(), 0, time.Since(start), err)
		return nil, err
	}

	observability.Resolver().OnResolveComplete(ctx, "graph", ref.String(), g.NodeCount(), time.Since(start), nil)
	r.opts.Logger.Debug("resolved graph", "package", ref, "nodes", g.NodeCount(), "edges", g.EdgeCount(), "cyclic", g.HasCycle())
	return g, nil
}

// manifest returns the manifest of ref from the cache, fetching and storing
// it on a miss. Fetch errors are wrapped in a ResolveError and never cached.
func (r *Resolver) manifest(ctx context.Context, ref PackageRef) (Manifest, error) {
	if !r.opts.Refresh {
		if m, ok := r.cache.Get(ctx, ref); ok {
			return m, nil
		}
	}

	m, err := r.fetcher.FetchManifest(ctx, ref)
	if err != nil {
		return nil, &ResolveError{Ref: ref, Err: err}
	}
	observability.Resolver().OnFetch(ctx, ref.String())
	if m == nil {
		m = Manifest{}
	}

	// The entry is valid regardless of whether the caller is still waiting.
	if err := r.cache.Put(context.WithoutCancel(ctx), ref, m); err != nil {
		r.opts.Logger.Debug("cache write failed", "package", ref, "error", err)
	}
	return m, nil
}
