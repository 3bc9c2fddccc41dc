package atlas

// Qualification classifies the spatial relationship between two locations.
// The zero value None means the locations have no relation; it is a valid
// outcome, not an error.
type Qualification int

const (
	None Qualification = iota
	Exact
	Contains
	Contained
	Overlaps
)

func (q Qualification) String() string {
	switch q {
	case Exact:
		return "EXACT"
	case Contains:
		return "CONTAINS"
	case Contained:
		return "CONTAINED"
	case Overlaps:
		return "OVERLAPS"
	default:
		return "NONE"
	}
}

// Invert returns the qualification seen from the swapped argument order.
func (q Qualification) Invert() Qualification {
	switch q {
	case Contains:
		return Contained
	case Contained:
		return Contains
	default:
		return q
	}
}

// Qualify classifies the relationship of a to b using the builtin operators.
func Qualify(a, b Location, opts MatchOptions) (Qualification, error) {
	return defaultRegistry.Qualify(a, b, opts)
}

// Qualify computes the intersection of a and b and classifies the result:
//
//	EXACT      a and b denote the same spatial extent
//	CONTAINS   the intersection covers all of b, and a != b
//	CONTAINED  the intersection covers all of a, and a != b
//	OVERLAPS   non-empty intersection, neither side fully covered
//	None       empty intersection
//
// A space mismatch surfaces as InvalidComparisonError and a missing operator
// as UnregisteredComparisonError; neither is ever folded into None.
func (r *ComparatorRegistry) Qualify(a, b Location, opts MatchOptions) (Qualification, error) {
	inter, err := r.Intersect(a, b, opts)
	if err != nil {
		return None, err
	}
	if inter == nil {
		return None, nil
	}

	coversA := sameExtent(inter, a, opts)
	coversB := sameExtent(inter, b, opts)
	switch {
	case coversA && coversB:
		return Exact, nil
	case coversB:
		return Contains, nil
	case coversA:
		return Contained, nil
	default:
		return Overlaps, nil
	}
}

// sameExtent reports whether two locations denote the identical spatial
// extent. Degenerate forms are normalized first: a single-element point cloud
// and a zero-extent bounding box both collapse to a point.
func sameExtent(a, b Location, opts MatchOptions) bool {
	a, b = normalizeExtent(a), normalizeExtent(b)
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Point:
		return coordsMatch(av.Coord, b.(Point).Coord, opts)
	case BoundingBox:
		bv := b.(BoundingBox)
		return coordsMatch(av.Min, bv.Min, opts) && coordsMatch(av.Max, bv.Max, opts)
	case PointCloud:
		return sameCoordSet(av.Coords, b.(PointCloud).Coords, opts)
	default:
		return false
	}
}

func normalizeExtent(loc Location) Location {
	switch v := loc.(type) {
	case PointCloud:
		if v.Len() == 1 {
			return v.PointAt(0)
		}
	case BoundingBox:
		if sameCoord(v.Min, v.Max) {
			return Point{Space: v.Space, Coord: v.Min}
		}
	}
	return loc
}

// sameCoordSet compares two coordinate sequences as sets.
func sameCoordSet(a, b [][3]float64, opts MatchOptions) bool {
	if !coordsSubset(a, b, opts) {
		return false
	}
	return coordsSubset(b, a, opts)
}

func coordsSubset(sub, super [][3]float64, opts MatchOptions) bool {
	for _, p := range sub {
		found := false
		for _, q := range super {
			if coordsMatch(p, q, opts) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
