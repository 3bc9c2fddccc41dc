package atlas

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Fingerprint computes a deterministic content-derived cache key for a build
// input: the label order, the shared grid and every nonzero voxel value feed
// the digest, so identical inputs always map to one key.
func Fingerprint(volumes []LabeledVolume) string {
	h := sha256.New()
	var buf [8]byte

	for _, lv := range volumes {
		h.Write([]byte(lv.Label))
		h.Write([]byte{0})

		g := lv.Volume.Grid
		for i := 0; i < 3; i++ {
			binary.LittleEndian.PutUint64(buf[:], uint64(g.Shape[i]))
			h.Write(buf[:])
		}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(g.Affine.R[i][j]))
				h.Write(buf[:])
			}
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(g.Affine.T[i]))
			h.Write(buf[:])
		}

		for i, v := range lv.Volume.Data {
			if v <= 0 {
				continue
			}
			binary.LittleEndian.PutUint64(buf[:], uint64(i))
			h.Write(buf[:])
			binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
			h.Write(buf[:4])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IndexCache memoizes sparse index builds by fingerprint. Each fingerprint is
// built at most once: concurrent requests for the same key coalesce onto one
// in-flight build. Built indexes are persisted under the cache directory so
// later processes load instead of rebuilding; a missing or corrupt persisted
// triple is a cache miss, not an error.
type IndexCache struct {
	dir string

	mu    sync.RWMutex
	built map[string]*SparseIndex
	group singleflight.Group
}

// NewIndexCache creates a cache. An empty dir disables disk persistence.
func NewIndexCache(dir string) *IndexCache {
	return &IndexCache{
		dir:   dir,
		built: make(map[string]*SparseIndex),
	}
}

// Get returns the index for the fingerprint, building it with the supplied
// function on a miss.
func (c *IndexCache) Get(fingerprint string, build func() (*SparseIndex, error)) (*SparseIndex, error) {
	c.mu.RLock()
	idx, ok := c.built[fingerprint]
	c.mu.RUnlock()
	if ok {
		return idx, nil
	}

	v, err, _ := c.group.Do(fingerprint, func() (any, error) {
		// Re-check: an earlier flight may have populated the map.
		c.mu.RLock()
		idx, ok := c.built[fingerprint]
		c.mu.RUnlock()
		if ok {
			return idx, nil
		}

		if c.dir != "" {
			if idx, err := LoadSparseIndex(c.dir, baseName(fingerprint)); err == nil {
				c.store(fingerprint, idx)
				return idx, nil
			}
		}

		idx, err := build()
		if err != nil {
			return nil, err
		}

		if c.dir != "" {
			if err := SaveSparseIndex(idx, c.dir, baseName(fingerprint)); err != nil {
				log.Printf("Warning: persisting sparse index %s failed: %v", fingerprint[:12], err)
			}
		}
		c.store(fingerprint, idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SparseIndex), nil
}

// BuildCached fingerprints the volumes and builds their index at most once.
func (c *IndexCache) BuildCached(volumes []LabeledVolume) (*SparseIndex, error) {
	fp := Fingerprint(volumes)
	return c.Get(fp, func() (*SparseIndex, error) {
		log.Printf("Building sparse index %s from %d volumetric maps", fp[:12], len(volumes))
		return BuildSparseIndex(volumes)
	})
}

func (c *IndexCache) store(fingerprint string, idx *SparseIndex) {
	c.mu.Lock()
	c.built[fingerprint] = idx
	c.mu.Unlock()
}

// Invalidate drops the in-memory entry for a fingerprint. The next Get
// reloads from disk or rebuilds.
func (c *IndexCache) Invalidate(fingerprint string) {
	c.mu.Lock()
	delete(c.built, fingerprint)
	c.mu.Unlock()
}

func baseName(fingerprint string) string {
	return fmt.Sprintf("index-%s", fingerprint[:16])
}
