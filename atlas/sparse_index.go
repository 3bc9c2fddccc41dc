package atlas

import (
	"fmt"
	"sort"
)

// unsetCoordID marks voxels that belong to no label.
const unsetCoordID = -1

// SparseIndex compresses many overlapping probabilistic label volumes that
// share one voxel grid into a single compact structure. Each unique nonzero
// voxel location gets one coordinate id; the coordinate table stores the
// per-label probabilities observed there. Any single label's dense volume can
// be reconstructed on demand.
//
// A built index is read-only; all lookup methods are safe for concurrent use.
type SparseIndex struct {
	Grid VoxelGrid

	// Probs is the coordinate table: entry i maps label -> probability at
	// the voxel carrying coordinate id i. A label appears at most once per
	// entry.
	Probs []map[string]float32

	// Bounds holds the inclusive voxel-space bounding box per label.
	Bounds map[string]LabelBounds

	// Voxels assigns each grid voxel its coordinate id, or unsetCoordID.
	Voxels []int32
}

// BuildSparseIndex merges an ordered sequence of labeled dense probability
// volumes into a sparse index. All volumes must share one voxel grid;
// coordinate ids are assigned in first-seen scan order. A label occurring
// twice at one coordinate or a grid mismatch aborts the build with a
// BuildInconsistencyError.
func BuildSparseIndex(volumes []LabeledVolume) (*SparseIndex, error) {
	if len(volumes) == 0 {
		return nil, fmt.Errorf("no volumes to index")
	}

	grid := volumes[0].Volume.Grid
	idx := &SparseIndex{
		Grid:   grid,
		Bounds: make(map[string]LabelBounds, len(volumes)),
		Voxels: make([]int32, grid.NumVoxels()),
	}
	for i := range idx.Voxels {
		idx.Voxels[i] = unsetCoordID
	}

	for _, lv := range volumes {
		if err := lv.Volume.Validate(); err != nil {
			return nil, err
		}
		if !lv.Volume.Grid.Equal(grid) {
			return nil, &BuildInconsistencyError{Reason: fmt.Sprintf(
				"volume %q has grid shape %v, want %v; merging volumes across voxel grids is unsupported",
				lv.Label, lv.Volume.Grid.Shape, grid.Shape)}
		}
		if err := idx.addVolume(lv.Label, lv.Volume); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// addVolume folds one label's nonzero voxels into the index.
func (s *SparseIndex) addVolume(label string, vol *ProbabilityVolume) error {
	bounds := LabelBounds{
		Min: VoxelCoord{X: s.Grid.Shape[0], Y: s.Grid.Shape[1], Z: s.Grid.Shape[2]},
		Max: VoxelCoord{X: -1, Y: -1, Z: -1},
	}
	seen := false

	for i, prob := range vol.Data {
		if prob <= 0 {
			continue
		}
		x, y, z := s.Grid.Coord(i)

		coordID := s.Voxels[i]
		if coordID == unsetCoordID {
			coordID = int32(len(s.Probs))
			s.Voxels[i] = coordID
			s.Probs = append(s.Probs, map[string]float32{label: prob})
		} else {
			entry := s.Probs[coordID]
			if _, dup := entry[label]; dup {
				return &BuildInconsistencyError{Reason: fmt.Sprintf(
					"label %q occurs twice at voxel (%d,%d,%d)", label, x, y, z)}
			}
			entry[label] = prob
		}

		bounds.expand(x, y, z)
		seen = true
	}

	if seen {
		s.Bounds[label] = bounds
	}
	return nil
}

// Labels returns all indexed labels in sorted order.
func (s *SparseIndex) Labels() []string {
	labels := make([]string, 0, len(s.Bounds))
	for label := range s.Bounds {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// HasLabel reports whether the index contains any voxels for the label.
func (s *SparseIndex) HasLabel(label string) bool {
	_, ok := s.Bounds[label]
	return ok
}

// scanLabel walks the label's bounding box and invokes fn for every voxel
// mapped to the label, passing its coordinate and probability. The bounding
// box restricts the region scanned; voxels outside it never carry the label.
func (s *SparseIndex) scanLabel(label string, fn func(c VoxelCoord, prob float32)) error {
	bounds, ok := s.Bounds[label]
	if !ok {
		return fmt.Errorf("label %q is not indexed", label)
	}
	for z := bounds.Min.Z; z <= bounds.Max.Z; z++ {
		for y := bounds.Min.Y; y <= bounds.Max.Y; y++ {
			for x := bounds.Min.X; x <= bounds.Max.X; x++ {
				coordID := s.Voxels[s.Grid.Index(x, y, z)]
				if coordID == unsetCoordID {
					continue
				}
				if prob, ok := s.Probs[coordID][label]; ok {
					fn(VoxelCoord{X: x, Y: y, Z: z}, prob)
				}
			}
		}
	}
	return nil
}

// GetCoordinates returns the voxel coordinates of all nonzero voxels of the
// label.
func (s *SparseIndex) GetCoordinates(label string) ([]VoxelCoord, error) {
	var coords []VoxelCoord
	err := s.scanLabel(label, func(c VoxelCoord, _ float32) {
		coords = append(coords, c)
	})
	if err != nil {
		return nil, err
	}
	return coords, nil
}

// GetMappedVoxels returns the label's nonzero voxel coordinates together with
// their probabilities, in matching order.
func (s *SparseIndex) GetMappedVoxels(label string) ([]VoxelCoord, []float32, error) {
	var coords []VoxelCoord
	var probs []float32
	err := s.scanLabel(label, func(c VoxelCoord, prob float32) {
		coords = append(coords, c)
		probs = append(probs, prob)
	})
	if err != nil {
		return nil, nil, err
	}
	return coords, probs, nil
}

// Fetch reconstructs the label's dense probability volume: a zero volume of
// the grid shape with the label's voxels set to their probabilities, carrying
// the grid affine.
func (s *SparseIndex) Fetch(label string) (*ProbabilityVolume, error) {
	vol := NewProbabilityVolume(s.Grid)
	err := s.scanLabel(label, func(c VoxelCoord, prob float32) {
		vol.Set(c.X, c.Y, c.Z, prob)
	})
	if err != nil {
		return nil, err
	}
	return vol, nil
}

// NumCoordinates returns the number of unique nonzero voxel locations.
func (s *SparseIndex) NumCoordinates() int {
	return len(s.Probs)
}
