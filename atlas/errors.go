package atlas

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTransform is returned by a Warper when no transform between the
	// requested pair of reference spaces is known.
	ErrNoTransform = errors.New("no known transform between spaces")

	// ErrMalformedIndex indicates missing or mutually inconsistent persisted
	// sparse index files. Loading aborts; the index must be rebuilt.
	ErrMalformedIndex = errors.New("malformed persisted sparse index")
)

// UnregisteredComparisonError reports that no intersection operator exists
// for a concrete pair of location kinds. This is a structural gap that needs
// a new operator registration, so it always propagates to the caller.
type UnregisteredComparisonError struct {
	A, B LocationKind
}

func (e *UnregisteredComparisonError) Error() string {
	return fmt.Sprintf("no comparator registered for %s x %s", e.A, e.B)
}

// InvalidComparisonError reports that an operator exists but the operands are
// structurally incompatible: they live in different reference spaces and no
// transform between them is known. Callers are expected to recover from it.
type InvalidComparisonError struct {
	ASpace, BSpace string
}

func (e *InvalidComparisonError) Error() string {
	return fmt.Sprintf("locations not comparable: space %q vs %q", e.ASpace, e.BSpace)
}

// IsInvalidComparison reports whether err is an InvalidComparisonError.
func IsInvalidComparison(err error) bool {
	var ice *InvalidComparisonError
	return errors.As(err, &ice)
}

// IsUnregisteredComparison reports whether err is an UnregisteredComparisonError.
func IsUnregisteredComparison(err error) bool {
	var uce *UnregisteredComparisonError
	return errors.As(err, &uce)
}

// BuildInconsistencyError reports a fatal inconsistency detected while
// building a sparse index: either a label occurring twice at one coordinate,
// or input volumes with mismatched voxel grids. Builds never recover from it.
type BuildInconsistencyError struct {
	Reason string
}

func (e *BuildInconsistencyError) Error() string {
	return "sparse index build inconsistency: " + e.Reason
}
