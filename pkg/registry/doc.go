// Package registry fetches dependency manifests from an npm-compatible
// package registry.
//
// # Protocol
//
// [Client.FetchManifest] issues one request per package version:
//
//	GET {base}/{name}/{version}
//
// and reads the "dependencies" object of the returned version document.
// Scoped names are path-escaped ("@babel/core" becomes "@babel%2Fcore").
// The version may be a concrete version or a dist-tag such as "latest".
//
// # Errors
//
// Responses are mapped to coded errors from pkg/errors:
//
//   - 404: PACKAGE_NOT_FOUND
//   - 5xx and transport failures: REGISTRY_ERROR, wrapped in [RetryableError]
//   - other non-2xx and malformed bodies: REGISTRY_ERROR
//   - deadline exceeded: TIMEOUT
//
// The client itself never retries. Wrap it with [WithRetry] to retry
// transient failures with exponential backoff.
package registry
