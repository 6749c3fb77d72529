package deps

import (
	"fmt"

	apperr "github.com/matzehuels/deptree/pkg/errors"
)

// ResolveError reports which package a resolution failed on. Err carries the
// underlying coded error (see [apperr.GetCode]).
type ResolveError struct {
	Ref PackageRef
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Ref, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means a package or version does not exist
// in the registry.
func IsNotFound(err error) bool {
	return apperr.Is(err, apperr.ErrCodePackageNotFound)
}
