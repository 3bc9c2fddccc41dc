package atlas

import "math"

// Affine3 is a 3-D affine transform mapping voxel or physical coordinates.
// x' = R*x + T, with R the 3x3 linear part and T the translation.
type Affine3 struct {
	R [3][3]float64 `json:"r" yaml:"r"`
	T [3]float64    `json:"t" yaml:"t"`
}

// Identity returns the identity transform.
func Identity() Affine3 {
	return Affine3{R: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Translation creates a translation-only transform.
func Translation(tx, ty, tz float64) Affine3 {
	a := Identity()
	a.T = [3]float64{tx, ty, tz}
	return a
}

// Scaling creates a per-axis scaling transform.
func Scaling(sx, sy, sz float64) Affine3 {
	return Affine3{R: [3][3]float64{{sx, 0, 0}, {0, sy, 0}, {0, 0, sz}}}
}

// RotationZ creates a rotation about the z axis (angle in radians).
func RotationZ(angle float64) Affine3 {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return Affine3{R: [3][3]float64{
		{cos, -sin, 0},
		{sin, cos, 0},
		{0, 0, 1},
	}}
}

// RotationZDeg creates a rotation about the z axis (angle in degrees).
func RotationZDeg(degrees float64) Affine3 {
	return RotationZ(degrees * math.Pi / 180.0)
}

// Apply transforms a single coordinate.
func (a Affine3) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = a.R[i][0]*p[0] + a.R[i][1]*p[1] + a.R[i][2]*p[2] + a.T[i]
	}
	return out
}

// ApplyAll transforms multiple coordinates.
func (a Affine3) ApplyAll(points [][3]float64) [][3]float64 {
	result := make([][3]float64, len(points))
	for i, p := range points {
		result[i] = a.Apply(p)
	}
	return result
}

// Compose composes two transforms: result = a * b.
// Applying the result is equivalent to applying b first, then a.
func Compose(a, b Affine3) Affine3 {
	var out Affine3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out.R[i][j] += a.R[i][k] * b.R[k][j]
			}
		}
		out.T[i] = a.R[i][0]*b.T[0] + a.R[i][1]*b.T[1] + a.R[i][2]*b.T[2] + a.T[i]
	}
	return out
}

// Invert computes the inverse of an affine transform.
// Returns identity if the linear part is singular (determinant ~= 0).
func (a Affine3) Invert() Affine3 {
	r := a.R
	det := r[0][0]*(r[1][1]*r[2][2]-r[1][2]*r[2][1]) -
		r[0][1]*(r[1][0]*r[2][2]-r[1][2]*r[2][0]) +
		r[0][2]*(r[1][0]*r[2][1]-r[1][1]*r[2][0])
	if math.Abs(det) < 1e-12 {
		return Identity()
	}

	invDet := 1.0 / det
	var inv Affine3
	inv.R[0][0] = (r[1][1]*r[2][2] - r[1][2]*r[2][1]) * invDet
	inv.R[0][1] = (r[0][2]*r[2][1] - r[0][1]*r[2][2]) * invDet
	inv.R[0][2] = (r[0][1]*r[1][2] - r[0][2]*r[1][1]) * invDet
	inv.R[1][0] = (r[1][2]*r[2][0] - r[1][0]*r[2][2]) * invDet
	inv.R[1][1] = (r[0][0]*r[2][2] - r[0][2]*r[2][0]) * invDet
	inv.R[1][2] = (r[0][2]*r[1][0] - r[0][0]*r[1][2]) * invDet
	inv.R[2][0] = (r[1][0]*r[2][1] - r[1][1]*r[2][0]) * invDet
	inv.R[2][1] = (r[0][1]*r[2][0] - r[0][0]*r[2][1]) * invDet
	inv.R[2][2] = (r[0][0]*r[1][1] - r[0][1]*r[1][0]) * invDet

	// t' = -R^-1 * t
	for i := 0; i < 3; i++ {
		inv.T[i] = -(inv.R[i][0]*a.T[0] + inv.R[i][1]*a.T[1] + inv.R[i][2]*a.T[2])
	}
	return inv
}

// Equal reports whether two transforms are identical within tolerance.
func (a Affine3) Equal(b Affine3) bool {
	const eps = 1e-9
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a.R[i][j]-b.R[i][j]) > eps {
				return false
			}
		}
		if math.Abs(a.T[i]-b.T[i]) > eps {
			return false
		}
	}
	return true
}

// EuclideanDistance calculates the distance between two coordinates.
func EuclideanDistance(p1, p2 [3]float64) float64 {
	dx := p2[0] - p1[0]
	dy := p2[1] - p1[1]
	dz := p2[2] - p1[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Centroid calculates the center of mass of a set of coordinates.
func Centroid(points [][3]float64) [3]float64 {
	if len(points) == 0 {
		return [3]float64{}
	}
	var sum [3]float64
	for _, p := range points {
		sum[0] += p[0]
		sum[1] += p[1]
		sum[2] += p[2]
	}
	n := float64(len(points))
	return [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}
}
