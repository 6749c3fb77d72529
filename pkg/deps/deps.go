package deps

import (
	"context"
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	apperr "github.com/matzehuels/deptree/pkg/errors"
)

const (
	// Latest is the dist-tag the registry resolves to the newest published version.
	Latest = "latest"

	DefaultConcurrency = 20   // Default number of concurrent registry fetches
	DefaultMaxNodes    = 5000 // Default maximum packages in one transitive walk
)

// PackageRef identifies one version of a package. Version is a concrete
// version string or [Latest]. Two refs are equal iff both strings are equal.
type PackageRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewRef validates name and version and substitutes [Latest] for an empty
// version.
func NewRef(name, version string) (PackageRef, error) {
	if err := apperr.ValidatePackageName(name); err != nil {
		return PackageRef{}, err
	}
	if err := apperr.ValidateVersion(version); err != nil {
		return PackageRef{}, err
	}
	if version == "" {
		version = Latest
	}
	return PackageRef{Name: name, Version: version}, nil
}

// String returns "name@version".
func (r PackageRef) String() string { return r.Name + "@" + r.Version }

// Manifest maps dependency names to the version specifiers one package
// version declares (e.g. "accepts": "~1.3.5").
type Manifest map[string]string

// Names returns the dependency names in sorted order.
func (m Manifest) Names() []string {
	return slices.Sorted(maps.Keys(m))
}

// Resolve applies [ParseDependency] to every entry, keyed by declared name.
func (m Manifest) Resolve() Result {
	out := make(Result, len(m))
	for name, spec := range m {
		out[name] = ParseDependency(name, spec).Version
	}
	return out
}

// Result maps package names to resolved versions.
type Result map[string]string

// Fetcher retrieves the declared dependencies of one package version.
type Fetcher interface {
	// FetchManifest issues exactly one registry request for ref. A missing
	// package or version is reported with code PACKAGE_NOT_FOUND.
	FetchManifest(ctx context.Context, ref PackageRef) (Manifest, error)
}

// Options configures a [Resolver].
type Options struct {
	Concurrency int              // Concurrent registry fetches during a walk (default: 20)
	MaxNodes    int              // Maximum packages per walk (default: 5000)
	Refresh     bool             // Skip cache reads; fetched manifests are still stored
	Logger      *log.Logger      // Debug output (default: log.Default())
	Progress    func(PackageRef) // Called for each newly discovered package (optional)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Progress == nil {
		opts.Progress = func(PackageRef) {}
	}
	return opts
}
