package atlas

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultMaxFetchVoxels bounds the dense reconstruction size accepted from a
// payload. Collaborators delivering volumes are expected to stay below it.
const DefaultMaxFetchVoxels = 64 * 1024 * 1024

// MapPayload is the JSON exchange format for a set of probabilistic label
// maps sharing one voxel grid, as delivered by volume-fetch collaborators.
// Label volumes arrive sparsely as voxel/value lists to keep payloads small.
type MapPayload struct {
	MapID  string         `json:"mapId"`
	Space  string         `json:"space"`
	Shape  [3]int         `json:"shape"`
	Affine Affine3        `json:"affine"`
	Labels []LabelPayload `json:"labels"`
}

// LabelPayload is one label's sparse voxel list within a MapPayload.
type LabelPayload struct {
	Label  string    `json:"label"`
	Voxels [][3]int  `json:"voxels"`
	Values []float32 `json:"values"`
}

// ParseMapFile reads and parses a map payload JSON file.
func ParseMapFile(path string) (*MapPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseMapJSON(data)
}

// ParseMapJSON parses map payload JSON data.
func ParseMapJSON(data []byte) (*MapPayload, error) {
	var p MapPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return &p, nil
}

// Grid returns the voxel grid described by the payload.
func (p *MapPayload) Grid() VoxelGrid {
	return VoxelGrid{Shape: p.Shape, Affine: p.Affine}
}

// Validate checks the payload's structural invariants: a usable grid within
// the maxVoxels bound, matching voxel/value lengths, voxels inside the grid
// and strictly positive probabilities. maxVoxels <= 0 applies the default.
func (p *MapPayload) Validate(maxVoxels int) error {
	if maxVoxels <= 0 {
		maxVoxels = DefaultMaxFetchVoxels
	}
	for i, n := range p.Shape {
		if n <= 0 {
			return fmt.Errorf("map %q: non-positive shape component %d on axis %d", p.MapID, n, i)
		}
	}
	grid := p.Grid()
	if grid.NumVoxels() > maxVoxels {
		return fmt.Errorf("map %q: grid of %d voxels exceeds fetch bound %d",
			p.MapID, grid.NumVoxels(), maxVoxels)
	}
	if len(p.Labels) == 0 {
		return fmt.Errorf("map %q: no labels", p.MapID)
	}
	for _, lp := range p.Labels {
		if lp.Label == "" {
			return fmt.Errorf("map %q: empty label name", p.MapID)
		}
		if len(lp.Voxels) != len(lp.Values) {
			return fmt.Errorf("map %q label %q: %d voxels but %d values",
				p.MapID, lp.Label, len(lp.Voxels), len(lp.Values))
		}
		for i, v := range lp.Voxels {
			if !grid.Contains(v[0], v[1], v[2]) {
				return fmt.Errorf("map %q label %q: voxel %v outside grid %v",
					p.MapID, lp.Label, v, p.Shape)
			}
			if lp.Values[i] <= 0 {
				return fmt.Errorf("map %q label %q: non-positive probability %g at voxel %v",
					p.MapID, lp.Label, lp.Values[i], v)
			}
		}
	}
	return nil
}

// Volumes expands the payload into dense labeled probability volumes in the
// payload's label order.
func (p *MapPayload) Volumes() []LabeledVolume {
	grid := p.Grid()
	volumes := make([]LabeledVolume, 0, len(p.Labels))
	for _, lp := range p.Labels {
		vol := NewProbabilityVolume(grid)
		for i, v := range lp.Voxels {
			vol.Set(v[0], v[1], v[2], lp.Values[i])
		}
		volumes = append(volumes, LabeledVolume{Label: lp.Label, Volume: vol})
	}
	return volumes
}
