package atlas

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// MapState is the tracked state of one probabilistic label map.
type MapState struct {
	MapID       string    `json:"mapId"`
	Space       string    `json:"space"`
	Fingerprint string    `json:"fingerprint"`
	Labels      []string  `json:"labels"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StateTracker tracks the latest payload and built sparse index per map for
// the HTTP endpoints. Index builds go through the cache so identical payloads
// are built at most once.
type StateTracker struct {
	mu      sync.RWMutex
	indexes map[string]*SparseIndex
	states  map[string]*MapState

	cache      *IndexCache
	maxVoxels  int
	buildHooks []func(state MapState)
}

// NewStateTracker creates a tracker backed by the given index cache.
// maxVoxels bounds accepted payload sizes; <= 0 applies the default.
func NewStateTracker(cache *IndexCache, maxVoxels int) *StateTracker {
	if cache == nil {
		cache = NewIndexCache("")
	}
	return &StateTracker{
		indexes:   make(map[string]*SparseIndex),
		states:    make(map[string]*MapState),
		cache:     cache,
		maxVoxels: maxVoxels,
	}
}

// OnBuild registers a hook invoked after every successful index build.
func (st *StateTracker) OnBuild(hook func(state MapState)) {
	st.mu.Lock()
	st.buildHooks = append(st.buildHooks, hook)
	st.mu.Unlock()
}

// UpdateMap validates a payload, builds (or reuses) its sparse index and
// stores it as the latest state of the payload's map id.
func (st *StateTracker) UpdateMap(payload *MapPayload) error {
	if err := payload.Validate(st.maxVoxels); err != nil {
		return err
	}

	volumes := payload.Volumes()
	fp := Fingerprint(volumes)

	st.mu.RLock()
	prev, ok := st.states[payload.MapID]
	st.mu.RUnlock()
	if ok && prev.Fingerprint == fp {
		log.Printf("Map %s unchanged (fingerprint %s), keeping existing index", payload.MapID, fp[:12])
		return nil
	}

	idx, err := st.cache.Get(fp, func() (*SparseIndex, error) {
		log.Printf("Building sparse index for map %s (%d labels)", payload.MapID, len(volumes))
		return BuildSparseIndex(volumes)
	})
	if err != nil {
		return fmt.Errorf("building index for map %s: %w", payload.MapID, err)
	}

	state := MapState{
		MapID:       payload.MapID,
		Space:       payload.Space,
		Fingerprint: fp,
		Labels:      idx.Labels(),
		UpdatedAt:   time.Now(),
	}

	st.mu.Lock()
	st.indexes[payload.MapID] = idx
	st.states[payload.MapID] = &state
	hooks := append([]func(MapState){}, st.buildHooks...)
	st.mu.Unlock()

	for _, hook := range hooks {
		hook(state)
	}
	return nil
}

// GetIndex returns the built index for a map id.
func (st *StateTracker) GetIndex(mapID string) (*SparseIndex, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	idx, ok := st.indexes[mapID]
	return idx, ok
}

// GetState returns the tracked state for a map id.
func (st *StateTracker) GetState(mapID string) (MapState, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.states[mapID]
	if !ok {
		return MapState{}, false
	}
	return *s, true
}

// States returns the tracked state of every map.
func (st *StateTracker) States() []MapState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]MapState, 0, len(st.states))
	for _, s := range st.states {
		out = append(out, *s)
	}
	return out
}

// HasMaps reports whether any map has been received yet.
func (st *StateTracker) HasMaps() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.indexes) > 0
}
