package atlas

import "fmt"

// VoxelGrid describes the discrete sampling grid shared by all volumes that
// are merged into one sparse index: the grid shape plus the affine transform
// mapping voxel indices to physical coordinates.
type VoxelGrid struct {
	Shape  [3]int  `json:"shape"`
	Affine Affine3 `json:"affine"`
}

// NumVoxels returns the total number of voxels in the grid.
func (g VoxelGrid) NumVoxels() int {
	return g.Shape[0] * g.Shape[1] * g.Shape[2]
}

// Contains reports whether the voxel index lies inside the grid.
func (g VoxelGrid) Contains(x, y, z int) bool {
	return x >= 0 && x < g.Shape[0] &&
		y >= 0 && y < g.Shape[1] &&
		z >= 0 && z < g.Shape[2]
}

// Index flattens a voxel coordinate to a linear offset (x fastest).
func (g VoxelGrid) Index(x, y, z int) int {
	return x + g.Shape[0]*(y+g.Shape[1]*z)
}

// Coord expands a linear offset back to a voxel coordinate.
func (g VoxelGrid) Coord(idx int) (x, y, z int) {
	x = idx % g.Shape[0]
	idx /= g.Shape[0]
	y = idx % g.Shape[1]
	z = idx / g.Shape[1]
	return
}

// VoxelToPhysical maps a voxel index to a physical coordinate via the affine.
func (g VoxelGrid) VoxelToPhysical(x, y, z int) [3]float64 {
	return g.Affine.Apply([3]float64{float64(x), float64(y), float64(z)})
}

// Equal reports whether two grids have identical shape and affine.
func (g VoxelGrid) Equal(other VoxelGrid) bool {
	return g.Shape == other.Shape && g.Affine.Equal(other.Affine)
}

// ProbabilityVolume is a dense float32 volume on a voxel grid. Values are
// label probabilities in [0, 1]; zero means the label is absent at a voxel.
type ProbabilityVolume struct {
	Grid VoxelGrid `json:"grid"`
	Data []float32 `json:"data"`
}

// NewProbabilityVolume allocates a zero-filled volume for the given grid.
func NewProbabilityVolume(grid VoxelGrid) *ProbabilityVolume {
	return &ProbabilityVolume{
		Grid: grid,
		Data: make([]float32, grid.NumVoxels()),
	}
}

// At returns the value at a voxel coordinate.
func (v *ProbabilityVolume) At(x, y, z int) float32 {
	return v.Data[v.Grid.Index(x, y, z)]
}

// Set writes the value at a voxel coordinate.
func (v *ProbabilityVolume) Set(x, y, z int, value float32) {
	v.Data[v.Grid.Index(x, y, z)] = value
}

// Validate checks that the data length matches the grid shape.
func (v *ProbabilityVolume) Validate() error {
	if len(v.Data) != v.Grid.NumVoxels() {
		return fmt.Errorf("volume data length %d does not match grid shape %v (%d voxels)",
			len(v.Data), v.Grid.Shape, v.Grid.NumVoxels())
	}
	return nil
}

// LabeledVolume pairs a label identifier with its dense probability volume.
type LabeledVolume struct {
	Label  string             `json:"label"`
	Volume *ProbabilityVolume `json:"volume"`
}

// VoxelCoord is a discrete voxel coordinate.
type VoxelCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// LabelBounds is the inclusive voxel-space bounding box of a label.
type LabelBounds struct {
	Min VoxelCoord `json:"min"`
	Max VoxelCoord `json:"max"`
}

// expand grows the bounds to include the given voxel.
func (b *LabelBounds) expand(x, y, z int) {
	if x < b.Min.X {
		b.Min.X = x
	}
	if y < b.Min.Y {
		b.Min.Y = y
	}
	if z < b.Min.Z {
		b.Min.Z = z
	}
	if x > b.Max.X {
		b.Max.X = x
	}
	if y > b.Max.Y {
		b.Max.Y = y
	}
	if z > b.Max.Z {
		b.Max.Z = z
	}
}
