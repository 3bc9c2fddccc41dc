package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kwv/voxmesh/atlas"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *atlas.StateTracker, warper *atlas.AffineWarper) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			HasMaps   bool      `json:"hasMaps"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasMaps:   stateTracker.HasMaps(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// Map states endpoint
	mux.HandleFunc("/maps", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stateTracker.States()); err != nil {
			log.Printf("Error encoding map states: %v", err)
		}
	})

	// Label slice preview endpoint (raster heat map)
	mux.HandleFunc("/statmap.png", func(w http.ResponseWriter, r *http.Request) {
		idx, label, z, ok := sliceParams(w, r, stateTracker)
		if !ok {
			return
		}

		renderer := atlas.NewSliceRenderer(idx)
		if s, err := strconv.Atoi(r.URL.Query().Get("scale")); err == nil && s > 0 {
			renderer.Scale = s
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.WritePNG(w, label, z); err != nil {
			log.Printf("Error rendering slice for %s: %v", label, err)
		}
	})

	// Label slice GeoJSON endpoint
	mux.HandleFunc("/statmap.json", func(w http.ResponseWriter, r *http.Request) {
		idx, ok := lookupIndex(w, r, stateTracker)
		if !ok {
			return
		}
		z, err := strconv.Atoi(r.URL.Query().Get("z"))
		if err != nil {
			http.Error(w, "z parameter required", http.StatusBadRequest)
			return
		}

		fc, err := atlas.MapSliceCollection(idx, z)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if err := json.NewEncoder(w).Encode(fc); err != nil {
			log.Printf("Error encoding slice GeoJSON: %v", err)
		}
	})

	// Map overview endpoint (vector)
	mux.HandleFunc("/overview.svg", func(w http.ResponseWriter, r *http.Request) {
		idx, ok := lookupIndex(w, r, stateTracker)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		if err := atlas.NewVectorRenderer(idx).RenderToSVG(w); err != nil {
			log.Printf("Error rendering overview SVG: %v", err)
		}
	})

	// Qualification endpoint
	mux.HandleFunc("/qualify", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		handleQualify(w, r)
	})

	// Warp endpoint: express a location in another reference space
	mux.HandleFunc("/warp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Location locationPayload `json:"location"`
			Target   string          `json:"target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
			return
		}
		loc, err := req.Location.location()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		warped, err := warper.Warp(loc, req.Target)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(toPayload(warped)); err != nil {
			log.Printf("Error encoding warped location: %v", err)
		}
	})

	return mux
}

func lookupIndex(w http.ResponseWriter, r *http.Request, st *atlas.StateTracker) (*atlas.SparseIndex, bool) {
	mapID := r.URL.Query().Get("map")
	if mapID == "" {
		http.Error(w, "map parameter required", http.StatusBadRequest)
		return nil, false
	}
	idx, ok := st.GetIndex(mapID)
	if !ok {
		http.Error(w, fmt.Sprintf("map %q not available", mapID), http.StatusNotFound)
		return nil, false
	}
	return idx, true
}

func sliceParams(w http.ResponseWriter, r *http.Request, st *atlas.StateTracker) (*atlas.SparseIndex, string, int, bool) {
	idx, ok := lookupIndex(w, r, st)
	if !ok {
		return nil, "", 0, false
	}
	label := r.URL.Query().Get("label")
	if label == "" || !idx.HasLabel(label) {
		http.Error(w, fmt.Sprintf("label %q not available", label), http.StatusNotFound)
		return nil, "", 0, false
	}
	z, err := strconv.Atoi(r.URL.Query().Get("z"))
	if err != nil {
		http.Error(w, "z parameter required", http.StatusBadRequest)
		return nil, "", 0, false
	}
	return idx, label, z, true
}

// locationPayload is the wire form of a location in qualification requests.
type locationPayload struct {
	Kind   string       `json:"kind"`
	Space  string       `json:"space"`
	Coord  [3]float64   `json:"coord,omitempty"`
	Coords [][3]float64 `json:"coords,omitempty"`
	Min    [3]float64   `json:"min,omitempty"`
	Max    [3]float64   `json:"max,omitempty"`
	Sigma  float64      `json:"sigma,omitempty"`
}

func (lp locationPayload) location() (atlas.Location, error) {
	switch atlas.LocationKind(lp.Kind) {
	case atlas.KindPoint:
		return atlas.NewPoint(lp.Space, lp.Coord[0], lp.Coord[1], lp.Coord[2]).WithSigma(lp.Sigma), nil
	case atlas.KindPointCloud:
		return atlas.NewPointCloud(lp.Space, lp.Coords), nil
	case atlas.KindBoundingBox:
		return atlas.NewBoundingBox(lp.Space, lp.Min, lp.Max), nil
	default:
		return nil, fmt.Errorf("unknown location kind %q", lp.Kind)
	}
}

type qualifyRequest struct {
	A         []locationPayload `json:"a"`
	B         []locationPayload `json:"b"`
	Tolerance float64           `json:"tolerance,omitempty"`
}

type qualifyResult struct {
	A             locationPayload `json:"a"`
	B             locationPayload `json:"b"`
	Qualification string          `json:"qualification"`
}

func handleQualify(w http.ResponseWriter, r *http.Request) {
	var req qualifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	colA, err := toLocations(req.A)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	colB, err := toLocations(req.B)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := atlas.MatchOptions{Tolerance: req.Tolerance}
	results := make([]qualifyResult, 0)
	err = atlas.EachQualification(colA, colB, opts, func(m atlas.Match) bool {
		results = append(results, qualifyResult{
			A:             toPayload(m.A),
			B:             toPayload(m.B),
			Qualification: m.Qualification.String(),
		})
		return true
	})
	if err != nil {
		// An unregistered comparator is a configuration gap, not bad input.
		http.Error(w, err.Error(), http.StatusNotImplemented)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		log.Printf("Error encoding qualification results: %v", err)
	}
}

func toLocations(payloads []locationPayload) ([]atlas.Location, error) {
	locs := make([]atlas.Location, 0, len(payloads))
	for i, lp := range payloads {
		loc, err := lp.location()
		if err != nil {
			return nil, fmt.Errorf("location %d: %w", i, err)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func toPayload(loc atlas.Location) locationPayload {
	switch v := loc.(type) {
	case atlas.Point:
		return locationPayload{Kind: string(v.Kind()), Space: v.Space, Coord: v.Coord, Sigma: v.Sigma}
	case atlas.PointCloud:
		return locationPayload{Kind: string(v.Kind()), Space: v.Space, Coords: v.Coords}
	case atlas.BoundingBox:
		return locationPayload{Kind: string(v.Kind()), Space: v.Space, Min: v.Min, Max: v.Max}
	default:
		return locationPayload{Kind: string(loc.Kind()), Space: loc.SpaceID()}
	}
}
