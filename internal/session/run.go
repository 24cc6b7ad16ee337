package session

import (
	"time"

	"github.com/zjrosen/antrail/internal/events"
	"github.com/zjrosen/antrail/internal/params"
	"github.com/zjrosen/antrail/internal/route"
)

// RunSession is a single optimization run, plain or seeded.
type RunSession struct {
	*core
	*runState
}

// runState is guarded by core.mu.
type runState struct {
	variant   Variant
	seed      route.Route
	progress  []events.Progress
	message   string
	bestRoute route.Route
	changes   []route.Change
}

// RunSnapshot is a consistent copy of a RunSession.
type RunSnapshot struct {
	ID        ID
	Variant   Variant
	State     State
	Err       error
	Progress  []events.Progress
	Message   string
	BestRoute route.Route
	// SeedChanges compares the seed with the best route; nil for plain runs
	// or before completion.
	SeedChanges []route.Change
	Malformed   int
	StartedAt   time.Time
	EndedAt     time.Time
}

// NewRunSession creates an Idle run session.
func NewRunSession(ps params.ParameterSet, variant Variant, deps Deps) *RunSession {
	rs := &runState{variant: variant, seed: ps.SeedSolution.Clone()}
	return &RunSession{
		core:     newCore(KindRun, variant, ps, deps, rs),
		runState: rs,
	}
}

// Snapshot returns a copy of the session's state and accumulator.
func (s *RunSession) Snapshot() RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress := make([]events.Progress, len(s.progress))
	copy(progress, s.progress)
	var changes []route.Change
	if s.changes != nil {
		changes = make([]route.Change, len(s.changes))
		copy(changes, s.changes)
	}
	return RunSnapshot{
		ID:          s.id,
		Variant:     s.core.variant,
		State:       s.state,
		Err:         s.err,
		Progress:    progress,
		Message:     s.message,
		BestRoute:   s.bestRoute.Clone(),
		SeedChanges: changes,
		Malformed:   s.malformed,
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
	}
}

// BestRoute returns the best route once the session has Completed.
func (s *RunSession) BestRoute() route.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestRoute.Clone()
}

// ProgressLog returns every progress event in arrival order.
func (s *RunSession) ProgressLog() []events.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Progress, len(s.progress))
	copy(out, s.progress)
	return out
}

func (r *runState) startLine() string {
	if r.variant == VariantSeeded {
		return "Running ACO from seed solution in real time..."
	}
	return "Running ACO in real time..."
}

func (r *runState) accumulate(ev events.Event) []string {
	r.progress = append(r.progress, ev.Progress)
	return []string{formatProgress(ev.Progress)}
}

func (r *runState) complete(ev events.Event) []string {
	r.message = ev.Final.Message
	r.bestRoute = ev.Final.BestRoute.Clone()
	lines := []string{
		ev.Final.Message,
		"Best solution found: " + marshalRoute(r.bestRoute),
	}
	if r.variant == VariantSeeded {
		r.changes = route.Diff(r.seed, r.bestRoute)
		lines = append(lines, "Compared with seed: "+route.Summary(r.changes))
	}
	return lines
}

func (r *runState) failLine(err error) string {
	if isCanceled(err) {
		return "Real-time run cancelled."
	}
	return "Real-time run failed: " + err.Error()
}
