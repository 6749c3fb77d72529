// Package api serves the resolver over HTTP.
//
// # Routes
//
//	GET /api/v1/deps/{pkg}[/{ver}]     direct dependencies
//	GET /api/v1/alldeps/{pkg}[/{ver}]  transitive dependencies
//	GET /api/v1/graph/{pkg}[/{ver}]    dependency graph (?format=json|dot)
//	GET /healthz                       liveness and build info
//
// Results are JSON objects mapping package names to versions. Scoped package
// names must be sent URL-encoded ("@babel%2Fcore"). An omitted version means
// "latest".
//
// # Warm-up
//
// A successful direct lookup schedules a transitive resolution of the same
// package after a short delay, so that a follow-up alldeps request finds the
// cache warm. Warm-ups for the same package version are coalesced and pending
// ones are cancelled when the server shuts down.
//
// # Errors
//
// Failures are reported as
//
//	{"error": {"code": "PACKAGE_NOT_FOUND", "message": "...", "package": "...", "version": "..."}}
//
// with the status from [errors.HTTPStatus]. Setting Options.LegacyErrors
// answers every failure with 400 and the error text as text/plain instead.
package api
