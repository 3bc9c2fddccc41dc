package atlas

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleMapJSON = `{
  "mapId": "livingroom",
  "space": "map-frame",
  "shape": [3, 3, 2],
  "affine": {"r": [[0.05, 0, 0], [0, 0.05, 0], [0, 0, 0.05]], "t": [1.0, 2.0, 0]},
  "labels": [
    {"label": "sofa", "voxels": [[0, 0, 0], [1, 0, 0]], "values": [0.9, 0.4]},
    {"label": "table", "voxels": [[2, 2, 1]], "values": [0.7]}
  ]
}`

func TestParseMapJSON(t *testing.T) {
	p, err := ParseMapJSON([]byte(sampleMapJSON))
	if err != nil {
		t.Fatalf("ParseMapJSON error: %v", err)
	}
	if p.MapID != "livingroom" || p.Space != "map-frame" {
		t.Errorf("got mapId %q space %q", p.MapID, p.Space)
	}
	if p.Shape != [3]int{3, 3, 2} {
		t.Errorf("shape = %v", p.Shape)
	}
	if len(p.Labels) != 2 || p.Labels[0].Label != "sofa" || p.Labels[1].Label != "table" {
		t.Errorf("labels = %+v", p.Labels)
	}
	if err := p.Validate(0); err != nil {
		t.Errorf("Validate error: %v", err)
	}
}

func TestParseMapFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livingroom.voxmap.json")
	if err := os.WriteFile(path, []byte(sampleMapJSON), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := ParseMapFile(path)
	if err != nil {
		t.Fatalf("ParseMapFile error: %v", err)
	}
	if p.MapID != "livingroom" {
		t.Errorf("mapId = %q", p.MapID)
	}

	if _, err := ParseMapFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestPayloadVolumes(t *testing.T) {
	p, err := ParseMapJSON([]byte(sampleMapJSON))
	if err != nil {
		t.Fatal(err)
	}

	volumes := p.Volumes()
	if len(volumes) != 2 {
		t.Fatalf("got %d volumes, want 2", len(volumes))
	}
	sofa := volumes[0].Volume
	if got := sofa.At(0, 0, 0); got != 0.9 {
		t.Errorf("sofa at (0,0,0) = %v, want 0.9", got)
	}
	if got := sofa.At(1, 0, 0); got != 0.4 {
		t.Errorf("sofa at (1,0,0) = %v, want 0.4", got)
	}
	if got := sofa.At(2, 2, 1); got != 0 {
		t.Errorf("sofa at (2,2,1) = %v, want 0", got)
	}
	if !sofa.Grid.Equal(p.Grid()) {
		t.Error("volume grid does not match payload grid")
	}

	// Volumes feed the index builder directly.
	idx, err := BuildSparseIndex(volumes)
	if err != nil {
		t.Fatalf("BuildSparseIndex error: %v", err)
	}
	if got := idx.Labels(); len(got) != 2 {
		t.Errorf("index labels = %v", got)
	}
}

func TestPayloadValidate(t *testing.T) {
	base := func() *MapPayload {
		p, err := ParseMapJSON([]byte(sampleMapJSON))
		if err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		mutate  func(p *MapPayload)
		wantErr string
	}{
		{
			name:    "zero shape axis",
			mutate:  func(p *MapPayload) { p.Shape[1] = 0 },
			wantErr: "shape",
		},
		{
			name:    "no labels",
			mutate:  func(p *MapPayload) { p.Labels = nil },
			wantErr: "no labels",
		},
		{
			name:    "empty label name",
			mutate:  func(p *MapPayload) { p.Labels[0].Label = "" },
			wantErr: "empty label",
		},
		{
			name:    "voxel value length mismatch",
			mutate:  func(p *MapPayload) { p.Labels[0].Values = p.Labels[0].Values[:1] },
			wantErr: "voxels but",
		},
		{
			name:    "voxel outside grid",
			mutate:  func(p *MapPayload) { p.Labels[1].Voxels[0] = [3]int{3, 0, 0} },
			wantErr: "outside grid",
		},
		{
			name:    "non-positive probability",
			mutate:  func(p *MapPayload) { p.Labels[0].Values[0] = 0 },
			wantErr: "non-positive probability",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			err := p.Validate(0)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestPayloadValidateFetchBound(t *testing.T) {
	p, err := ParseMapJSON([]byte(sampleMapJSON))
	if err != nil {
		t.Fatal(err)
	}
	// 3*3*2 = 18 voxels against a bound of 10.
	if err := p.Validate(10); err == nil {
		t.Error("grid over the fetch bound should fail validation")
	}
	if err := p.Validate(18); err != nil {
		t.Errorf("grid at the fetch bound should pass: %v", err)
	}
}
