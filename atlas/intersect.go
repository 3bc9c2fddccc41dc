package atlas

// MatchOptions controls coordinate matching in intersection operators.
// Tolerance is the maximum physical distance at which two coordinates are
// considered the same point; zero means exact componentwise equality.
// Uncertainty-aware matching is an explicit caller choice, never inferred
// from the sigma values stored on the locations themselves.
type MatchOptions struct {
	Tolerance float64
}

// IntersectFunc computes the intersection of two locations of fixed concrete
// kinds. It returns the intersection location, or nil when the locations do
// not intersect. An InvalidComparisonError is returned when the operands live
// in different reference spaces.
type IntersectFunc func(a, b Location, opts MatchOptions) (Location, error)

type pairKey struct {
	a, b LocationKind
}

// ComparatorRegistry is a dispatch table of intersection operators keyed by
// concrete location kind pairs. All builtin operators are commutative: a
// lookup tries both argument orderings, flipping the operands for the
// reversed entry. Registries are populated at startup and read-only after.
type ComparatorRegistry struct {
	ops map[pairKey]IntersectFunc
}

// NewComparatorRegistry returns a registry with the six builtin operators
// covering every unordered pair of {Point, PointCloud, BoundingBox}.
func NewComparatorRegistry() *ComparatorRegistry {
	r := &ComparatorRegistry{ops: make(map[pairKey]IntersectFunc)}
	r.Register(KindPoint, KindPoint, intersectPtPt)
	r.Register(KindPoint, KindPointCloud, intersectPtCloud)
	r.Register(KindPoint, KindBoundingBox, intersectPtBox)
	r.Register(KindPointCloud, KindPointCloud, intersectCloudCloud)
	r.Register(KindPointCloud, KindBoundingBox, intersectCloudBox)
	r.Register(KindBoundingBox, KindBoundingBox, intersectBoxBox)
	return r
}

// Register adds an operator for the given kind pair.
func (r *ComparatorRegistry) Register(a, b LocationKind, fn IntersectFunc) {
	r.ops[pairKey{a, b}] = fn
}

// Intersect dispatches to the operator registered for the operand kinds,
// trying both argument orderings. Degenerate operands are normalized first,
// so a zero-extent bounding box intersects like the point at its corner.
// It returns an UnregisteredComparisonError when neither ordering has an
// operator.
func (r *ComparatorRegistry) Intersect(a, b Location, opts MatchOptions) (Location, error) {
	a, b = normalizeExtent(a), normalizeExtent(b)
	if fn, ok := r.ops[pairKey{a.Kind(), b.Kind()}]; ok {
		return fn(a, b, opts)
	}
	if fn, ok := r.ops[pairKey{b.Kind(), a.Kind()}]; ok {
		return fn(b, a, opts)
	}
	return nil, &UnregisteredComparisonError{A: a.Kind(), B: b.Kind()}
}

// defaultRegistry holds the builtin operators. It is created once and never
// mutated afterwards, so concurrent reads are safe.
var defaultRegistry = NewComparatorRegistry()

// Intersect computes the intersection of two locations using the builtin
// operator set.
func Intersect(a, b Location, opts MatchOptions) (Location, error) {
	return defaultRegistry.Intersect(a, b, opts)
}

// checkSpaces returns an InvalidComparisonError unless both locations share
// one reference space. A space mismatch is never reported as "no
// intersection".
func checkSpaces(a, b Location) error {
	if a.SpaceID() != b.SpaceID() {
		return &InvalidComparisonError{ASpace: a.SpaceID(), BSpace: b.SpaceID()}
	}
	return nil
}

// coordsMatch reports whether two coordinates are the same point under the
// given options.
func coordsMatch(a, b [3]float64, opts MatchOptions) bool {
	if opts.Tolerance <= 0 {
		return sameCoord(a, b)
	}
	return EuclideanDistance(a, b) <= opts.Tolerance
}

func intersectPtPt(a, b Location, opts MatchOptions) (Location, error) {
	if err := checkSpaces(a, b); err != nil {
		return nil, err
	}
	pa, pb := a.(Point), b.(Point)
	if coordsMatch(pa.Coord, pb.Coord, opts) {
		return pa, nil
	}
	return nil, nil
}

func intersectPtCloud(a, b Location, opts MatchOptions) (Location, error) {
	if err := checkSpaces(a, b); err != nil {
		return nil, err
	}
	pt, cloud := a.(Point), b.(PointCloud)
	for _, c := range cloud.Coords {
		if coordsMatch(pt.Coord, c, opts) {
			return pt, nil
		}
	}
	return nil, nil
}

func intersectPtBox(a, b Location, opts MatchOptions) (Location, error) {
	if err := checkSpaces(a, b); err != nil {
		return nil, err
	}
	pt, box := a.(Point), b.(BoundingBox)
	if box.ContainsCoord(pt.Coord) {
		return pt, nil
	}
	return nil, nil
}

func intersectCloudCloud(a, b Location, opts MatchOptions) (Location, error) {
	if err := checkSpaces(a, b); err != nil {
		return nil, err
	}
	ca, cb := a.(PointCloud), b.(PointCloud)
	var shared [][3]float64
	for _, p := range ca.Coords {
		for _, q := range cb.Coords {
			if coordsMatch(p, q, opts) {
				shared = append(shared, p)
				break
			}
		}
	}
	return cloudResult(ca.Space, shared), nil
}

func intersectCloudBox(a, b Location, opts MatchOptions) (Location, error) {
	if err := checkSpaces(a, b); err != nil {
		return nil, err
	}
	cloud, box := a.(PointCloud), b.(BoundingBox)
	var inside [][3]float64
	for _, p := range cloud.Coords {
		if box.ContainsCoord(p) {
			inside = append(inside, p)
		}
	}
	return cloudResult(cloud.Space, inside), nil
}

func intersectBoxBox(a, b Location, _ MatchOptions) (Location, error) {
	if err := checkSpaces(a, b); err != nil {
		return nil, err
	}
	ba, bb := a.(BoundingBox), b.(BoundingBox)
	var min, max [3]float64
	for i := 0; i < 3; i++ {
		min[i] = ba.Min[i]
		if bb.Min[i] > min[i] {
			min[i] = bb.Min[i]
		}
		max[i] = ba.Max[i]
		if bb.Max[i] < max[i] {
			max[i] = bb.Max[i]
		}
		if max[i] <= min[i] {
			return nil, nil
		}
	}
	return BoundingBox{Space: ba.Space, Min: min, Max: max}, nil
}

// cloudResult builds the intersection result from surviving coordinates:
// none left means no intersection, a single coordinate degrades to a Point,
// two or more stay a PointCloud.
func cloudResult(space string, coords [][3]float64) Location {
	switch len(coords) {
	case 0:
		return nil
	case 1:
		return Point{Space: space, Coord: coords[0]}
	default:
		return PointCloud{Space: space, Coords: coords}
	}
}
