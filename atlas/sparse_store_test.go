package atlas

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
)

func buildTestIndex(t *testing.T) *SparseIndex {
	t.Helper()
	grid := VoxelGrid{Shape: [3]int{4, 3, 2}, Affine: Translation(10, -5, 0)}
	volumes := []LabeledVolume{
		{Label: "alpha", Volume: denseVolume(grid, map[VoxelCoord]float32{
			{X: 0, Y: 0, Z: 0}: 0.125,
			{X: 2, Y: 1, Z: 1}: 0.75,
		})},
		{Label: "beta", Volume: denseVolume(grid, map[VoxelCoord]float32{
			{X: 2, Y: 1, Z: 1}: 0.5,
			{X: 3, Y: 2, Z: 0}: 1,
		})},
	}
	idx, err := BuildSparseIndex(volumes)
	if err != nil {
		t.Fatalf("BuildSparseIndex error: %v", err)
	}
	return idx
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)

	if err := SaveSparseIndex(idx, dir, "testmap"); err != nil {
		t.Fatalf("SaveSparseIndex error: %v", err)
	}
	for _, suffix := range []string{suffixProbs, suffixBounds, suffixVoxels} {
		if _, err := os.Stat(filepath.Join(dir, "testmap"+suffix)); err != nil {
			t.Errorf("expected file with suffix %s: %v", suffix, err)
		}
	}

	loaded, err := LoadSparseIndex(dir, "testmap")
	if err != nil {
		t.Fatalf("LoadSparseIndex error: %v", err)
	}
	if diff := cmp.Diff(idx, loaded); diff != "" {
		t.Errorf("loaded index differs (-saved +loaded):\n%s", diff)
	}

	// A fetched volume from the loaded index matches the original.
	want, _ := idx.Fetch("alpha")
	got, err := loaded.Fetch("alpha")
	if err != nil {
		t.Fatalf("Fetch from loaded index error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fetched volume differs (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)
	if err := SaveSparseIndex(idx, dir, "partial"); err != nil {
		t.Fatalf("SaveSparseIndex error: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "partial"+suffixBounds)); err != nil {
		t.Fatal(err)
	}

	_, err := LoadSparseIndex(dir, "partial")
	if !errors.Is(err, ErrMalformedIndex) {
		t.Errorf("got err %v, want ErrMalformedIndex", err)
	}
}

func TestLoadCorruptVoxels(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)
	if err := SaveSparseIndex(idx, dir, "corrupt"); err != nil {
		t.Fatalf("SaveSparseIndex error: %v", err)
	}
	// Not a gzip stream.
	if err := os.WriteFile(filepath.Join(dir, "corrupt"+suffixVoxels), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadSparseIndex(dir, "corrupt")
	if !errors.Is(err, ErrMalformedIndex) {
		t.Errorf("got err %v, want ErrMalformedIndex", err)
	}
}

func TestLoadOversizedShape(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)
	if err := SaveSparseIndex(idx, dir, "huge"); err != nil {
		t.Fatalf("SaveSparseIndex error: %v", err)
	}

	// A valid header claiming an absurd grid must be rejected before any
	// voxel allocation happens, not crash the loader.
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	header := []any{
		uint32(voxelMagic), uint32(voxelVersion),
		int32(1 << 21), int32(1 << 21), int32(1 << 21),
	}
	for _, v := range header {
		if err := binary.Write(zw, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "huge"+suffixVoxels), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadSparseIndex(dir, "huge")
	if !errors.Is(err, ErrMalformedIndex) {
		t.Errorf("got err %v, want ErrMalformedIndex", err)
	}
}

func TestLoadCoordIDOutOfRange(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)
	// Point a voxel past the end of the coordinate table.
	idx.Voxels[0] = int32(len(idx.Probs)) + 5
	if err := SaveSparseIndex(idx, dir, "badid"); err != nil {
		t.Fatalf("SaveSparseIndex error: %v", err)
	}

	_, err := LoadSparseIndex(dir, "badid")
	if !errors.Is(err, ErrMalformedIndex) {
		t.Errorf("got err %v, want ErrMalformedIndex", err)
	}
}

func TestLoadBoundsMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)
	delete(idx.Bounds, "beta")
	if err := SaveSparseIndex(idx, dir, "nobeta"); err != nil {
		t.Fatalf("SaveSparseIndex error: %v", err)
	}

	_, err := LoadSparseIndex(dir, "nobeta")
	if !errors.Is(err, ErrMalformedIndex) {
		t.Errorf("got err %v, want ErrMalformedIndex", err)
	}
}

func TestLoadInvertedBounds(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)
	idx.Bounds["alpha"] = LabelBounds{
		Min: VoxelCoord{X: 2, Y: 1, Z: 1},
		Max: VoxelCoord{X: 0, Y: 0, Z: 0},
	}
	if err := SaveSparseIndex(idx, dir, "inverted"); err != nil {
		t.Fatalf("SaveSparseIndex error: %v", err)
	}

	_, err := LoadSparseIndex(dir, "inverted")
	if !errors.Is(err, ErrMalformedIndex) {
		t.Errorf("got err %v, want ErrMalformedIndex", err)
	}
}

func TestSaveDeterministic(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	idx := buildTestIndex(t)

	if err := SaveSparseIndex(idx, dirA, "det"); err != nil {
		t.Fatal(err)
	}
	if err := SaveSparseIndex(idx, dirB, "det"); err != nil {
		t.Fatal(err)
	}
	for _, suffix := range []string{suffixProbs, suffixBounds, suffixVoxels} {
		a, err := os.ReadFile(filepath.Join(dirA, "det"+suffix))
		if err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(filepath.Join(dirB, "det"+suffix))
		if err != nil {
			t.Fatal(err)
		}
		if string(a) != string(b) {
			t.Errorf("file %s not byte-identical across saves", suffix)
		}
	}
}
