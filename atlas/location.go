package atlas

import "fmt"

// Location is a spatial object tagged with the reference space it lives in.
// Locations are immutable values; operations return new locations.
type Location interface {
	// SpaceID returns the identifier of the reference space.
	SpaceID() string
	// Kind returns the concrete location kind, used for comparator dispatch.
	Kind() LocationKind
}

// LocationKind identifies the closed set of concrete location types.
type LocationKind string

const (
	KindPoint       LocationKind = "point"
	KindPointCloud  LocationKind = "pointcloud"
	KindBoundingBox LocationKind = "boundingbox"
)

// Point is a single physical coordinate in a reference space.
// Sigma is the positional uncertainty in physical units (0 = exact).
type Point struct {
	Space string     `json:"space"`
	Coord [3]float64 `json:"coord"`
	Sigma float64    `json:"sigma,omitempty"`
}

// NewPoint creates an exact Point. Use WithSigma to attach uncertainty.
func NewPoint(space string, x, y, z float64) Point {
	return Point{Space: space, Coord: [3]float64{x, y, z}}
}

// WithSigma returns a copy of the point with the given uncertainty.
func (p Point) WithSigma(sigma float64) Point {
	if sigma < 0 {
		sigma = 0
	}
	p.Sigma = sigma
	return p
}

func (p Point) SpaceID() string    { return p.Space }
func (p Point) Kind() LocationKind { return KindPoint }

func (p Point) String() string {
	return fmt.Sprintf("Point(%g, %g, %g)@%s", p.Coord[0], p.Coord[1], p.Coord[2], p.Space)
}

// PointCloud is an ordered sequence of coordinates sharing one reference
// space. Sigmas carries a per-element uncertainty; nil means all exact.
type PointCloud struct {
	Space  string       `json:"space"`
	Coords [][3]float64 `json:"coords"`
	Sigmas []float64    `json:"sigmas,omitempty"`
}

// NewPointCloud creates a PointCloud from the given coordinates.
// The coordinate slice is copied so the cloud stays immutable.
func NewPointCloud(space string, coords [][3]float64) PointCloud {
	cp := make([][3]float64, len(coords))
	copy(cp, coords)
	return PointCloud{Space: space, Coords: cp}
}

func (c PointCloud) SpaceID() string    { return c.Space }
func (c PointCloud) Kind() LocationKind { return KindPointCloud }

// Len returns the number of points in the cloud.
func (c PointCloud) Len() int { return len(c.Coords) }

// PointAt returns the i-th element of the cloud as a Point.
func (c PointCloud) PointAt(i int) Point {
	p := Point{Space: c.Space, Coord: c.Coords[i]}
	if i < len(c.Sigmas) {
		p.Sigma = c.Sigmas[i]
	}
	return p
}

// BoundingBox returns the minimal axis-aligned box enclosing the cloud.
func (c PointCloud) BoundingBox() (BoundingBox, error) {
	if len(c.Coords) == 0 {
		return BoundingBox{}, fmt.Errorf("bounding box of empty point cloud")
	}
	min := c.Coords[0]
	max := c.Coords[0]
	for _, p := range c.Coords[1:] {
		for i := 0; i < 3; i++ {
			if p[i] < min[i] {
				min[i] = p[i]
			}
			if p[i] > max[i] {
				max[i] = p[i]
			}
		}
	}
	return BoundingBox{Space: c.Space, Min: min, Max: max}, nil
}

// BoundingBox is an axis-aligned box in a reference space.
// Min <= Max holds componentwise; NewBoundingBox normalizes swapped corners.
type BoundingBox struct {
	Space string     `json:"space"`
	Min   [3]float64 `json:"min"`
	Max   [3]float64 `json:"max"`
}

// NewBoundingBox creates a BoundingBox from two opposite corners.
func NewBoundingBox(space string, corner1, corner2 [3]float64) BoundingBox {
	var min, max [3]float64
	for i := 0; i < 3; i++ {
		if corner1[i] <= corner2[i] {
			min[i], max[i] = corner1[i], corner2[i]
		} else {
			min[i], max[i] = corner2[i], corner1[i]
		}
	}
	return BoundingBox{Space: space, Min: min, Max: max}
}

func (b BoundingBox) SpaceID() string    { return b.Space }
func (b BoundingBox) Kind() LocationKind { return KindBoundingBox }

// ContainsCoord reports whether the coordinate lies within [Min, Max]
// inclusive on every axis.
func (b BoundingBox) ContainsCoord(p [3]float64) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Extent returns the box side lengths per axis.
func (b BoundingBox) Extent() [3]float64 {
	return [3]float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Center returns the box midpoint.
func (b BoundingBox) Center() [3]float64 {
	return [3]float64{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("BoundingBox(%v..%v)@%s", b.Min, b.Max, b.Space)
}

// sameCoord reports exact componentwise equality of two coordinates.
func sameCoord(a, b [3]float64) bool {
	return a[0] == b[0] && a[1] == b[1] && a[2] == b[2]
}
