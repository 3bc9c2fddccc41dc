package atlas

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Persisted sparse index file suffixes. An index is stored as three
// independent compressed streams sharing one base filename.
const (
	suffixProbs  = ".sparseindex.probs.txt.gz"
	suffixBounds = ".sparseindex.bboxes.csv.gz"
	suffixVoxels = ".sparseindex.voxels.vvol.gz"
)

// Voxel volume stream header. The int32 voxel data follows the header in
// little-endian order, x fastest.
const (
	voxelMagic   = 0x564F5831 // "VOX1"
	voxelVersion = 1
)

// SaveSparseIndex writes the three files of the persisted index under dir
// with the given base filename. The streams are written deterministically:
// labels within a coordinate entry and bounding box records are sorted.
func SaveSparseIndex(s *SparseIndex, dir, base string) error {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}
	full := filepath.Join(dir, base)

	if err := writeGzip(full+suffixProbs, s.writeProbs); err != nil {
		return fmt.Errorf("writing coordinate table: %w", err)
	}
	if err := writeGzip(full+suffixBounds, s.writeBounds); err != nil {
		return fmt.Errorf("writing bounding boxes: %w", err)
	}
	if err := writeGzip(full+suffixVoxels, s.writeVoxels); err != nil {
		return fmt.Errorf("writing voxel volume: %w", err)
	}
	return nil
}

func writeGzip(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := write(zw); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}

// writeProbs emits one line per coordinate id with whitespace-separated
// alternating label/probability pairs.
func (s *SparseIndex) writeProbs(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, entry := range s.Probs {
		labels := make([]string, 0, len(entry))
		for label := range entry {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for i, label := range labels {
			if i > 0 {
				if _, err := bw.WriteString(" "); err != nil {
					return err
				}
			}
			prob := strconv.FormatFloat(float64(entry[label]), 'g', -1, 32)
			if _, err := bw.WriteString(label + " " + prob); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeBounds emits one semicolon-separated record per label:
// label;x0;y0;z0;x1;y1;z1.
func (s *SparseIndex) writeBounds(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, label := range s.Labels() {
		b := s.Bounds[label]
		line := fmt.Sprintf("%s;%d;%d;%d;%d;%d;%d\n",
			label, b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeVoxels emits the binary voxel volume: magic, version, shape, affine,
// then the int32 coordinate ids.
func (s *SparseIndex) writeVoxels(w io.Writer) error {
	header := []any{
		uint32(voxelMagic),
		uint32(voxelVersion),
		int32(s.Grid.Shape[0]),
		int32(s.Grid.Shape[1]),
		int32(s.Grid.Shape[2]),
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if err := binary.Write(w, binary.LittleEndian, s.Grid.Affine.R[i][j]); err != nil {
				return err
			}
		}
	}
	for i := 0; i < 3; i++ {
		if err := binary.Write(w, binary.LittleEndian, s.Grid.Affine.T[i]); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, s.Voxels)
}

// LoadSparseIndex reads a persisted index from the three files under dir with
// the given base filename. All three must be present and mutually consistent
// in the coordinate-id domain; anything else fails with ErrMalformedIndex.
func LoadSparseIndex(dir, base string) (*SparseIndex, error) {
	full := filepath.Join(dir, base)

	idx := &SparseIndex{Bounds: make(map[string]LabelBounds)}

	if err := readGzip(full+suffixVoxels, idx.readVoxels); err != nil {
		return nil, fmt.Errorf("%w: voxel volume: %v", ErrMalformedIndex, err)
	}
	if err := readGzip(full+suffixProbs, idx.readProbs); err != nil {
		return nil, fmt.Errorf("%w: coordinate table: %v", ErrMalformedIndex, err)
	}
	if err := readGzip(full+suffixBounds, idx.readBounds); err != nil {
		return nil, fmt.Errorf("%w: bounding boxes: %v", ErrMalformedIndex, err)
	}

	if err := idx.checkConsistency(); err != nil {
		return nil, err
	}
	return idx, nil
}

func readGzip(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	return read(zr)
}

func (s *SparseIndex) readProbs(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields)%2 != 0 || len(fields) == 0 {
			return fmt.Errorf("coordinate entry %d has %d fields, want label/probability pairs",
				len(s.Probs), len(fields))
		}
		entry := make(map[string]float32, len(fields)/2)
		for i := 0; i < len(fields); i += 2 {
			prob, err := strconv.ParseFloat(fields[i+1], 32)
			if err != nil {
				return fmt.Errorf("coordinate entry %d: bad probability %q", len(s.Probs), fields[i+1])
			}
			if _, dup := entry[fields[i]]; dup {
				return fmt.Errorf("coordinate entry %d: label %q repeated", len(s.Probs), fields[i])
			}
			entry[fields[i]] = float32(prob)
		}
		s.Probs = append(s.Probs, entry)
	}
	return scanner.Err()
}

func (s *SparseIndex) readBounds(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) != 7 {
			return fmt.Errorf("bounding box record %q: want 7 fields, got %d", line, len(fields))
		}
		vals := make([]int, 6)
		for i := 0; i < 6; i++ {
			v, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return fmt.Errorf("bounding box record for %q: bad coordinate %q", fields[0], fields[i+1])
			}
			vals[i] = v
		}
		s.Bounds[fields[0]] = LabelBounds{
			Min: VoxelCoord{X: vals[0], Y: vals[1], Z: vals[2]},
			Max: VoxelCoord{X: vals[3], Y: vals[4], Z: vals[5]},
		}
	}
	return scanner.Err()
}

func (s *SparseIndex) readVoxels(r io.Reader) error {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return err
	}
	if magic != voxelMagic {
		return fmt.Errorf("bad magic 0x%08X", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != voxelVersion {
		return fmt.Errorf("unsupported voxel volume version %d", version)
	}

	var shape [3]int32
	for i := 0; i < 3; i++ {
		if err := binary.Read(r, binary.LittleEndian, &shape[i]); err != nil {
			return err
		}
		if shape[i] <= 0 {
			return fmt.Errorf("non-positive shape component %d", shape[i])
		}
		s.Grid.Shape[i] = int(shape[i])
	}
	// The shape header is untrusted input; cap the total before allocating.
	// Multiplying stepwise keeps the running product inside int64.
	total := int64(shape[0]) * int64(shape[1])
	if total > DefaultMaxFetchVoxels {
		return fmt.Errorf("voxel volume %dx%dx%d exceeds limit of %d voxels",
			shape[0], shape[1], shape[2], DefaultMaxFetchVoxels)
	}
	total *= int64(shape[2])
	if total > DefaultMaxFetchVoxels {
		return fmt.Errorf("voxel volume %dx%dx%d exceeds limit of %d voxels",
			shape[0], shape[1], shape[2], DefaultMaxFetchVoxels)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if err := binary.Read(r, binary.LittleEndian, &s.Grid.Affine.R[i][j]); err != nil {
				return err
			}
		}
	}
	for i := 0; i < 3; i++ {
		if err := binary.Read(r, binary.LittleEndian, &s.Grid.Affine.T[i]); err != nil {
			return err
		}
	}

	s.Voxels = make([]int32, s.Grid.NumVoxels())
	return binary.Read(r, binary.LittleEndian, s.Voxels)
}

// checkConsistency validates that the three loaded streams agree on the
// coordinate-id domain and the label set.
func (s *SparseIndex) checkConsistency() error {
	n := int32(len(s.Probs))
	for i, id := range s.Voxels {
		if id != unsetCoordID && (id < 0 || id >= n) {
			x, y, z := s.Grid.Coord(i)
			return fmt.Errorf("%w: voxel (%d,%d,%d) references coordinate id %d outside table of %d entries",
				ErrMalformedIndex, x, y, z, id, n)
		}
	}

	labels := make(map[string]struct{})
	for _, entry := range s.Probs {
		for label := range entry {
			labels[label] = struct{}{}
		}
	}
	if len(labels) != len(s.Bounds) {
		return fmt.Errorf("%w: coordinate table has %d labels, bounding boxes have %d",
			ErrMalformedIndex, len(labels), len(s.Bounds))
	}
	for label := range labels {
		b, ok := s.Bounds[label]
		if !ok {
			return fmt.Errorf("%w: label %q has no bounding box record", ErrMalformedIndex, label)
		}
		if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
			return fmt.Errorf("%w: label %q has inverted bounding box", ErrMalformedIndex, label)
		}
		if !s.Grid.Contains(b.Min.X, b.Min.Y, b.Min.Z) || !s.Grid.Contains(b.Max.X, b.Max.Y, b.Max.Z) {
			return fmt.Errorf("%w: label %q bounding box exceeds grid %v", ErrMalformedIndex, label, s.Grid.Shape)
		}
	}
	return nil
}
