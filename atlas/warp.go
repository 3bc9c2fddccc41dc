package atlas

import "fmt"

// Warper maps a location into another reference space. Implementations own
// the space resolution; the geometric core never resolves spaces itself and
// treats a failed warp as "no known transform".
type Warper interface {
	Warp(loc Location, targetSpace string) (Location, error)
}

// AffineWarper warps locations between reference spaces using configured
// affine transforms, the same way per-sensor calibration matrices map local
// frames onto a reference frame. When a direct transform for a space pair is
// missing, the inverse of the reverse pair is used if registered.
type AffineWarper struct {
	transforms map[spacePair]Affine3
}

type spacePair struct {
	from, to string
}

// NewAffineWarper creates an empty warper.
func NewAffineWarper() *AffineWarper {
	return &AffineWarper{transforms: make(map[spacePair]Affine3)}
}

// RegisterTransform adds the affine mapping coordinates of the `from` space
// into the `to` space.
func (w *AffineWarper) RegisterTransform(from, to string, transform Affine3) {
	w.transforms[spacePair{from, to}] = transform
}

func (w *AffineWarper) lookup(from, to string) (Affine3, bool) {
	if from == to {
		return Identity(), true
	}
	if t, ok := w.transforms[spacePair{from, to}]; ok {
		return t, true
	}
	if t, ok := w.transforms[spacePair{to, from}]; ok {
		return t.Invert(), true
	}
	return Affine3{}, false
}

// Warp returns an equivalent location expressed in targetSpace, or
// ErrNoTransform when the space pair has no registered transform.
func (w *AffineWarper) Warp(loc Location, targetSpace string) (Location, error) {
	t, ok := w.lookup(loc.SpaceID(), targetSpace)
	if !ok {
		return nil, fmt.Errorf("%w: %q -> %q", ErrNoTransform, loc.SpaceID(), targetSpace)
	}

	switch v := loc.(type) {
	case Point:
		out := v
		out.Space = targetSpace
		out.Coord = t.Apply(v.Coord)
		return out, nil
	case PointCloud:
		out := PointCloud{Space: targetSpace, Coords: t.ApplyAll(v.Coords)}
		if len(v.Sigmas) > 0 {
			out.Sigmas = append([]float64(nil), v.Sigmas...)
		}
		return out, nil
	case BoundingBox:
		// A rotated box is no longer axis-aligned in the target space, so all
		// eight corners are warped and their enclosure taken. The result
		// covers every point of the original box.
		out := BoundingBox{Space: targetSpace}
		first := true
		for _, x := range [2]float64{v.Min[0], v.Max[0]} {
			for _, y := range [2]float64{v.Min[1], v.Max[1]} {
				for _, z := range [2]float64{v.Min[2], v.Max[2]} {
					c := t.Apply([3]float64{x, y, z})
					if first {
						out.Min, out.Max = c, c
						first = false
						continue
					}
					for i := 0; i < 3; i++ {
						if c[i] < out.Min[i] {
							out.Min[i] = c[i]
						}
						if c[i] > out.Max[i] {
							out.Max[i] = c[i]
						}
					}
				}
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot warp location kind %q", loc.Kind())
	}
}
