package atlas

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// DefaultOutlineTolerance is the Douglas-Peucker tolerance (physical units)
// applied to slice outlines before export.
const DefaultOutlineTolerance = 0.5

// projectXY maps a voxel coordinate to its physical x/y position, dropping z.
func projectXY(grid VoxelGrid, x, y, z int) orb.Point {
	p := grid.VoxelToPhysical(x, y, z)
	return orb.Point{p[0], p[1]}
}

// SlicePoints returns the physical x/y positions of the label's nonzero
// voxels on the axial slice z.
func SlicePoints(idx *SparseIndex, label string, z int) (orb.MultiPoint, error) {
	var pts orb.MultiPoint
	err := idx.scanLabel(label, func(c VoxelCoord, _ float32) {
		if c.Z == z {
			pts = append(pts, projectXY(idx.Grid, c.X, c.Y, c.Z))
		}
	})
	if err != nil {
		return nil, err
	}
	return pts, nil
}

// SliceOutline traces a closed outline around the label's voxels on the
// axial slice z: the left-most edge of each occupied row walked downward,
// then the right-most edge walked back up. The ring is simplified with
// Douglas-Peucker before it is returned. Returns nil when the slice is empty.
func SliceOutline(idx *SparseIndex, label string, z int, tolerance float64) (orb.Ring, error) {
	if tolerance <= 0 {
		tolerance = DefaultOutlineTolerance
	}

	type rowRun struct {
		y, minX, maxX int
	}
	var rows []rowRun
	err := idx.scanLabel(label, func(c VoxelCoord, _ float32) {
		if c.Z != z {
			return
		}
		if n := len(rows); n > 0 && rows[n-1].y == c.Y {
			if c.X < rows[n-1].minX {
				rows[n-1].minX = c.X
			}
			if c.X > rows[n-1].maxX {
				rows[n-1].maxX = c.X
			}
			return
		}
		rows = append(rows, rowRun{y: c.Y, minX: c.X, maxX: c.X})
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ring := make(orb.Ring, 0, 2*len(rows)+1)
	for _, r := range rows {
		ring = append(ring, projectXY(idx.Grid, r.minX, r.y, z))
	}
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		ring = append(ring, projectXY(idx.Grid, r.maxX, r.y, z))
	}
	ring = append(ring, ring[0]) // close

	simplified := simplify.DouglasPeucker(tolerance).Simplify(ring.Clone())
	return simplified.(orb.Ring), nil
}

// LabelSliceFeature exports one label's axial slice as a GeoJSON feature:
// the simplified outline polygon with label, slice and area properties.
func LabelSliceFeature(idx *SparseIndex, label string, z int) (*geojson.Feature, error) {
	ring, err := SliceOutline(idx, label, z, 0)
	if err != nil {
		return nil, err
	}
	if ring == nil {
		return nil, nil
	}

	poly := orb.Polygon{ring}
	f := geojson.NewFeature(poly)
	f.Properties["label"] = label
	f.Properties["slice"] = z
	f.Properties["area"] = planar.Area(poly)
	return f, nil
}

// MapSliceCollection exports the axial slice z of every label of the index as
// a GeoJSON feature collection. Labels with no voxels on the slice are
// skipped.
func MapSliceCollection(idx *SparseIndex, z int) (*geojson.FeatureCollection, error) {
	if z < 0 || z >= idx.Grid.Shape[2] {
		return nil, fmt.Errorf("slice %d outside grid of depth %d", z, idx.Grid.Shape[2])
	}

	fc := geojson.NewFeatureCollection()
	for _, label := range idx.Labels() {
		f, err := LabelSliceFeature(idx, label, z)
		if err != nil {
			return nil, err
		}
		if f != nil {
			fc.Append(f)
		}
	}
	return fc, nil
}

// LocationFeature exports a location as a GeoJSON feature projected onto the
// x/y plane, tagged with its reference space.
func LocationFeature(loc Location) *geojson.Feature {
	var f *geojson.Feature
	switch v := loc.(type) {
	case Point:
		f = geojson.NewFeature(orb.Point{v.Coord[0], v.Coord[1]})
		if v.Sigma > 0 {
			f.Properties["sigma"] = v.Sigma
		}
	case PointCloud:
		mp := make(orb.MultiPoint, len(v.Coords))
		for i, c := range v.Coords {
			mp[i] = orb.Point{c[0], c[1]}
		}
		f = geojson.NewFeature(mp)
	case BoundingBox:
		ring := orb.Ring{
			{v.Min[0], v.Min[1]},
			{v.Max[0], v.Min[1]},
			{v.Max[0], v.Max[1]},
			{v.Min[0], v.Max[1]},
			{v.Min[0], v.Min[1]},
		}
		f = geojson.NewFeature(orb.Polygon{ring})
	default:
		return nil
	}
	f.Properties["space"] = loc.SpaceID()
	f.Properties["kind"] = string(loc.Kind())
	return f
}
