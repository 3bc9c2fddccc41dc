package atlas

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheVolumes() []LabeledVolume {
	grid := VoxelGrid{Shape: [3]int{3, 3, 3}, Affine: Identity()}
	return []LabeledVolume{
		{Label: "region", Volume: denseVolume(grid, map[VoxelCoord]float32{
			{X: 1, Y: 1, Z: 1}: 0.6,
			{X: 2, Y: 0, Z: 2}: 0.3,
		})},
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(cacheVolumes())
	b := Fingerprint(cacheVolumes())
	assert.Equal(t, a, b, "identical inputs must map to one fingerprint")

	changed := cacheVolumes()
	changed[0].Volume.Set(1, 1, 1, 0.61)
	assert.NotEqual(t, a, Fingerprint(changed), "changed voxel value must change the fingerprint")

	relabeled := cacheVolumes()
	relabeled[0].Label = "other"
	assert.NotEqual(t, a, Fingerprint(relabeled), "changed label must change the fingerprint")
}

func TestCacheBuildsOnce(t *testing.T) {
	cache := NewIndexCache("")
	volumes := cacheVolumes()

	var builds int32
	fp := Fingerprint(volumes)
	build := func() (*SparseIndex, error) {
		atomic.AddInt32(&builds, 1)
		return BuildSparseIndex(volumes)
	}

	first, err := cache.Get(fp, build)
	require.NoError(t, err)
	second, err := cache.Get(fp, build)
	require.NoError(t, err)

	assert.Same(t, first, second, "repeated Get must return the memoized index")
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
}

func TestCacheCoalescesConcurrentBuilds(t *testing.T) {
	cache := NewIndexCache("")
	volumes := cacheVolumes()
	fp := Fingerprint(volumes)

	var builds int32
	build := func() (*SparseIndex, error) {
		atomic.AddInt32(&builds, 1)
		time.Sleep(20 * time.Millisecond)
		return BuildSparseIndex(volumes)
	}

	const workers = 8
	results := make([]*SparseIndex, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := cache.Get(fp, build)
			assert.NoError(t, err)
			results[i] = idx
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds), "concurrent gets must coalesce onto one build")
	for i := 1; i < workers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestCachePersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	volumes := cacheVolumes()

	first := NewIndexCache(dir)
	idx, err := first.BuildCached(volumes)
	require.NoError(t, err)

	// A fresh cache over the same directory loads instead of rebuilding.
	second := NewIndexCache(dir)
	var builds int32
	reloaded, err := second.Get(Fingerprint(volumes), func() (*SparseIndex, error) {
		atomic.AddInt32(&builds, 1)
		return BuildSparseIndex(volumes)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&builds), "persisted index must be loaded, not rebuilt")
	assert.Equal(t, idx.Probs, reloaded.Probs)
	assert.Equal(t, idx.Bounds, reloaded.Bounds)
	assert.Equal(t, idx.Voxels, reloaded.Voxels)
}

func TestCacheInvalidate(t *testing.T) {
	cache := NewIndexCache("")
	volumes := cacheVolumes()
	fp := Fingerprint(volumes)

	var builds int32
	build := func() (*SparseIndex, error) {
		atomic.AddInt32(&builds, 1)
		return BuildSparseIndex(volumes)
	}

	_, err := cache.Get(fp, build)
	require.NoError(t, err)
	cache.Invalidate(fp)
	_, err = cache.Get(fp, build)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&builds), "invalidated entry must rebuild")
}

func TestCacheBuildErrorNotCached(t *testing.T) {
	cache := NewIndexCache("")
	grid := VoxelGrid{Shape: [3]int{2, 2, 2}, Affine: Identity()}
	vol := denseVolume(grid, map[VoxelCoord]float32{{X: 0, Y: 0, Z: 0}: 1})
	bad := []LabeledVolume{
		{Label: "dup", Volume: vol},
		{Label: "dup", Volume: vol},
	}

	_, err := cache.BuildCached(bad)
	require.Error(t, err)

	// A second attempt still surfaces the error.
	_, err = cache.BuildCached(bad)
	assert.Error(t, err)
}
