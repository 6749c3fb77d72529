// Package deps resolves npm-style package dependencies.
//
// # Overview
//
// A [Resolver] answers two questions about a package version:
//
//   - [Resolver.ResolveDirect]: which packages does it declare, and at which
//     versions?
//   - [Resolver.ResolveTransitive]: which packages does it pull in overall,
//     following dependencies of dependencies until nothing new is found?
//
// Both return a [Result] mapping package names to concrete versions.
// [Resolver.ResolveGraph] performs the transitive walk and keeps the edges.
//
// # Version Specifiers
//
// Manifests declare ranges such as "~1.3.5" or "^1.18.3". [ResolveSpecifier]
// reduces a range to one version by stripping its operators; it does not solve
// constraints against the registry's published versions. "*" and empty
// specifiers mean [Latest].
//
// [ParseDependency] classifies whole manifest entries. An npm alias
// ("npm:string-width@^4.2.0") is expanded as the aliased package but reported
// under its declared name. Entries that name no registry version, such as git
// URLs or "file:" paths, are reported with their literal specifier and never
// fetched, so they cannot fail a transitive walk.
//
// # Caching
//
// Every manifest fetched from the registry is stored in a [ResolutionCache]
// keyed by (name, version). Lookups of the same package version within the
// cache lifetime (24 hours by default) do not hit the network, both across
// calls and across the branches of one walk.
//
// # Concurrency
//
// The transitive walk fetches up to [Options].Concurrency manifests at once.
// A single collector goroutine owns the visited set and the result, so a
// package reachable through several paths is fetched once per call. Cycles
// terminate because a package version is expanded at most once.
//
// # Errors
//
// Failures are returned as [*ResolveError], which names the package version
// that could not be resolved and wraps a coded error from pkg/errors. Use
// [IsNotFound] to detect missing packages.
package deps
