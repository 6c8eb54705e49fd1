// Package api serves a read-only view of a running simulation over HTTP.
// The engine goroutine publishes a snapshot after every step; handlers only
// ever read snapshots, never the live space.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/talgya/geo-schelling/internal/engine"
	"github.com/talgya/geo-schelling/internal/persistence"
	"github.com/talgya/geo-schelling/internal/world"
)

const maxStreamConns = 4

// Status is the body of GET /api/v1/status.
type Status struct {
	Seed       int64            `json:"seed"`
	Step       int              `json:"step"`
	Running    bool             `json:"running"`
	Exported   bool             `json:"exported"`
	Regions    int              `json:"regions"`
	Happy      int              `json:"happy"`
	Occupied   int              `json:"occupied"`
	Counts     world.TypeCounts `json:"counts"`
	HappyShare float64          `json:"happy_share"`
}

// RegionView is one region in GET /api/v1/regions.
type RegionView struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Neighbors int    `json:"neighbors"`
}

// Server serves simulation snapshots over HTTP.
type Server struct {
	Port int
	DB   *persistence.DB // Optional; enables GET /api/v1/runs.

	mu      sync.RWMutex
	status  Status
	history []engine.StepRecord
	regions []RegionView
	shapes  []*world.Region // geometry never changes after load

	subMu   sync.Mutex
	subs    map[int]chan engine.StepRecord
	nextSub int

	streamConns int32
}

// NewServer creates a server and takes the initial snapshot of sim.
func NewServer(sim *engine.Simulation, port int) *Server {
	s := &Server{Port: port, subs: make(map[int]chan engine.StepRecord)}
	s.shapes = sim.Space.Regions()
	s.snapshot(sim)
	return s
}

// Observe returns a step hook that republishes the snapshot of sim.
func (s *Server) Observe(sim *engine.Simulation) engine.StepHook {
	return func(ctx context.Context, rec engine.StepRecord) error {
		s.snapshot(sim)
		s.broadcast(rec)
		return nil
	}
}

// snapshot must run on the goroutine that steps sim.
func (s *Server) snapshot(sim *engine.Simulation) {
	regions := make([]RegionView, 0, sim.Space.Len())
	for _, r := range sim.Space.Regions() {
		regions = append(regions, RegionView{
			ID:        r.ID,
			Type:      r.Type.String(),
			Neighbors: len(sim.Space.Neighbors(r)),
		})
	}
	counts := sim.Space.Counts()
	st := Status{
		Seed:     sim.Seed(),
		Step:     sim.StepCount(),
		Running:  sim.Running(),
		Exported: sim.Exported(),
		Regions:  sim.Space.Len(),
		Happy:    sim.Happy(),
		Occupied: counts.Occupied(),
		Counts:   counts,
	}
	if st.Occupied > 0 {
		st.HappyShare = float64(st.Happy) / float64(st.Occupied)
	}
	history := sim.History()

	s.mu.Lock()
	s.status = st
	s.history = history
	s.regions = regions
	s.mu.Unlock()
}

// Handler returns the routed API with CORS applied.
func (s *Server) Handler() http.Handler {
	regionLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", getOnly(s.handleStatus))
	mux.HandleFunc("/api/v1/history", getOnly(s.handleHistory))
	mux.HandleFunc("/api/v1/regions", getOnly(RateLimitMiddleware(regionLimiter, s.handleRegions)))
	mux.HandleFunc("/api/v1/runs", getOnly(s.handleRuns))
	mux.HandleFunc("/api/v1/stream", getOnly(s.handleStream))
	return corsMiddleware(mux)
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins. Set
// CORS_ORIGINS to a comma-separated list to extend the localhost defaults.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()
	writeJSON(w, st)
}

// handleHistory serves the step series. ?from=N skips steps before N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	from := 0
	if f := r.URL.Query().Get("from"); f != "" {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = v
	}

	s.mu.RLock()
	out := make([]engine.StepRecord, 0, len(s.history))
	for _, rec := range s.history {
		if rec.Step >= from {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()
	writeJSON(w, out)
}

// handleRegions serves region types as a list, or as GeoJSON with
// ?format=geojson. ?type= filters by region type.
func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := q.Get("type")
	if filter != "" {
		if _, err := world.ParseRegionType(filter); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	s.mu.RLock()
	regions := make([]RegionView, 0, len(s.regions))
	var idx []int
	for i, rv := range s.regions {
		if filter == "" || rv.Type == filter {
			regions = append(regions, rv)
			idx = append(idx, i)
		}
	}
	s.mu.RUnlock()

	if q.Get("format") != "geojson" {
		writeJSON(w, regions)
		return
	}

	fc := geojson.NewFeatureCollection()
	for k, i := range idx {
		f := geojson.NewFeature(s.shapes[i].Geometry)
		f.ID = regions[k].ID
		f.Properties["type"] = regions[k].Type
		f.Properties["neighbors"] = regions[k].Neighbors
		fc.Append(f)
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		slog.Error("encode regions", "error", err)
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	runs, err := s.DB.Runs()
	if err != nil {
		slog.Error("runs query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

// handleStream pushes each step record as a server-sent event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if n := atomic.AddInt32(&s.streamConns, 1); n > maxStreamConns {
		atomic.AddInt32(&s.streamConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.streamConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.subscribe()
	defer s.unsubscribe(id)

	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()
	writeEvent(w, "status", st)
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case rec := <-ch:
			writeEvent(w, "step", rec)
			flusher.Flush()
			if !rec.Running {
				return
			}
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) subscribe() (int, <-chan engine.StepRecord) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	ch := make(chan engine.StepRecord, 64)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

func (s *Server) unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subs, id)
}

// broadcast drops the record for subscribers whose buffer is full.
func (s *Server) broadcast(rec engine.StepRecord) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
