// Package mockserver is a development backend speaking the ACO server's wire
// contract: instance loading, streamed single, seeded and batch runs, graph
// figures and statistics plots.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/route"
	"github.com/zjrosen/antrail/internal/sse"
)

// PathBatchBoxplot is where the aggregate batch plot is served.
const PathBatchBoxplot = "/static/boxplot.png"

// Options tune the synthetic behaviour.
type Options struct {
	// Delay is slept between emitted events.
	Delay time.Duration
	// Runs is the number of runs in a batch.
	Runs int
	// MalformedEvery emits a malformed frame after every n-th progress
	// event. Zero disables it.
	MalformedEvery int
	// DropAfter closes streams after n events without a final frame. Zero
	// disables it.
	DropAfter int
}

// DefaultOptions returns a quick, well-behaved server.
func DefaultOptions() Options {
	return Options{Delay: 50 * time.Millisecond, Runs: 5}
}

// Server holds the loaded instance and the results the artifact endpoints
// report on.
type Server struct {
	opts   Options
	router chi.Router

	mu        sync.RWMutex
	instance  *Instance
	best      route.Route
	history   []Iteration
	batchBest [][]float64
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Runs <= 0 {
		opts.Runs = DefaultOptions().Runs
	}
	s := &Server{opts: opts}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on l until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(log.CatMock, "listening", "addr", l.Addr().String())
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Post("/load_instance", s.handleLoadInstance)
	r.Get("/get_graph", s.handleGraph)
	r.Get("/get_best_route", s.handleBestRoute)
	r.Get("/run_aco_sse", s.handleRun)
	r.Get("/run_aco_with_solution_sse", s.handleRunSeeded)
	r.Get("/run_multiple_aco", s.handleBatch)
	r.Get("/plot_iterations_boxplot", s.handleIterationsBoxplot)
	r.Get("/plot_fitness_evolution", s.handleFitnessEvolution)
	r.Get(PathBatchBoxplot, s.handleBatchBoxplot)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug(log.CatMock, "request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

func (s *Server) handleLoadInstance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Instance string `json:"instance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Instance == "" {
		writeError(w, http.StatusBadRequest, "request must be {\"instance\": name}")
		return
	}

	inst, err := NewInstance(req.Instance)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to load instance %s: %v", req.Instance, err))
		return
	}

	s.mu.Lock()
	s.instance = inst
	s.best = nil
	s.history = nil
	s.batchBest = nil
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Instance %s loaded successfully.", inst.Name),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	inst := s.instance
	s.mu.RUnlock()
	if inst == nil {
		writeError(w, http.StatusBadRequest, "Graph not loaded!")
		return
	}
	writeJSON(w, http.StatusOK, graphFigure(inst, nil))
}

func (s *Server) handleBestRoute(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	inst, best := s.instance, s.best
	s.mu.RUnlock()
	if inst == nil || best == nil {
		writeError(w, http.StatusBadRequest, "No best route found!")
		return
	}
	writeJSON(w, http.StatusOK, graphFigure(inst, best))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.runSingle(w, r, nil)
}

func (s *Server) handleRunSeeded(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	inst := s.instance
	s.mu.RUnlock()

	seed, err := route.Parse(r.URL.Query().Get("solution"))
	if err == nil && inst != nil {
		err = inst.CheckTour(seed)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Error processing the initial solution: %v", err))
		return
	}
	s.runSingle(w, r, seed)
}

func (s *Server) runSingle(w http.ResponseWriter, r *http.Request, seed route.Route) {
	out := newEmitter(w, r, s.opts)

	s.mu.RLock()
	inst := s.instance
	s.mu.RUnlock()
	if inst == nil {
		out.raw("{'error': 'Load an instance first!'}")
		return
	}
	p, err := parseParams(r)
	if err != nil {
		out.raw(fmt.Sprintf("{'error': 'Server error: %s'}", err))
		return
	}

	colony := NewColony(inst, p, seed, 0)
	var history []Iteration
	for i := 1; i <= p.Iterations; i++ {
		it := colony.Step(i)
		history = append(history, it)
		if !out.json(map[string]any{"iteracao": i, "fitness": it.Best}) {
			return
		}
	}

	best := colony.Best()
	s.mu.Lock()
	s.best = best
	s.history = history
	s.mu.Unlock()

	out.json(map[string]any{"final": true, "mensagem": "Run completed successfully", "melhor_rota": best})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	out := newEmitter(w, r, s.opts)

	s.mu.RLock()
	inst := s.instance
	s.mu.RUnlock()
	if inst == nil {
		out.raw("{'error': 'Load an instance first!'}")
		return
	}
	p, err := parseParams(r)
	if err != nil {
		out.raw(fmt.Sprintf("{'error': 'Server error: %s'}", err))
		return
	}

	report := max(p.Iterations/5, 1)
	perRun := make([][]float64, 0, s.opts.Runs)
	for run := 1; run <= s.opts.Runs; run++ {
		colony := NewColony(inst, p, nil, uint64(run))
		bests := make([]float64, 0, p.Iterations)
		for i := 1; i <= p.Iterations; i++ {
			bests = append(bests, colony.Step(i).Best)
			if i%report != 0 && i != p.Iterations {
				continue
			}
			if !out.json(map[string]any{"run": run, "iterations": i}) {
				return
			}
		}
		perRun = append(perRun, bests)
	}

	s.mu.Lock()
	s.batchBest = perRun
	s.mu.Unlock()

	out.json(map[string]any{
		"final":       true,
		"message":     fmt.Sprintf("%d runs completed", s.opts.Runs),
		"boxplot_url": PathBatchBoxplot,
	})
}

func (s *Server) handleIterationsBoxplot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	history := s.history
	s.mu.RUnlock()
	if len(history) == 0 {
		writeError(w, http.StatusBadRequest, "No run to plot!")
		return
	}
	series := make([][]float64, len(history))
	for i, it := range history {
		series[i] = it.Costs
	}
	writePNG(w, boxplot(series))
}

func (s *Server) handleFitnessEvolution(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	history := s.history
	s.mu.RUnlock()
	if len(history) == 0 {
		writeError(w, http.StatusBadRequest, "No run to plot!")
		return
	}
	values := make([]float64, len(history))
	for i, it := range history {
		values[i] = it.Best
	}
	writePNG(w, lineChart(values))
}

func (s *Server) handleBatchBoxplot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	runs := s.batchBest
	s.mu.RUnlock()
	if len(runs) == 0 {
		writeError(w, http.StatusNotFound, "No batch to plot!")
		return
	}
	writePNG(w, boxplot(runs))
}

var errBadParam = errors.New("invalid parameter")

func parseParams(r *http.Request) (Params, error) {
	q := r.URL.Query()
	var p Params
	floats := []struct {
		name string
		dst  *float64
	}{
		{"alpha", &p.Alpha}, {"beta", &p.Beta}, {"evaporation", &p.Evaporation}, {"Q", &p.Q},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(q.Get(f.name), 64)
		if err != nil {
			return Params{}, fmt.Errorf("%w %s", errBadParam, f.name)
		}
		*f.dst = v
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"numAnts", &p.Ants}, {"numIterations", &p.Iterations},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(q.Get(f.name))
		if err != nil || v <= 0 {
			return Params{}, fmt.Errorf("%w %s", errBadParam, f.name)
		}
		*f.dst = v
	}
	if p.Evaporation < 0 || p.Evaporation > 1 {
		return Params{}, fmt.Errorf("%w evaporation", errBadParam)
	}
	return p, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug(log.CatMock, "write json", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// emitter writes SSE frames and applies the fault injection options.
type emitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	opts    Options
	ctx     context.Context
	sent    int
}

func newEmitter(w http.ResponseWriter, r *http.Request, opts Options) *emitter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	return &emitter{w: w, flusher: flusher, opts: opts, ctx: r.Context()}
}

// json writes v as a frame. It returns false when the stream should stop.
func (e *emitter) json(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error(log.CatMock, "marshal frame", "error", err)
		return false
	}
	if !e.raw(string(data)) {
		return false
	}
	if e.opts.MalformedEvery > 0 && e.sent%e.opts.MalformedEvery == 0 {
		return e.raw("{'debug': 'colony tick'}")
	}
	return true
}

func (e *emitter) raw(data string) bool {
	if e.ctx.Err() != nil {
		return false
	}
	if e.opts.DropAfter > 0 && e.sent >= e.opts.DropAfter {
		return false
	}
	if _, err := fmt.Fprint(e.w, sse.Encode(data)); err != nil {
		return false
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	e.sent++
	if e.opts.Delay > 0 {
		time.Sleep(e.opts.Delay)
	}
	return true
}
