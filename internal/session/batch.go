package session

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/zjrosen/antrail/internal/events"
	"github.com/zjrosen/antrail/internal/params"
)

// RunRecord maps a batch run index to the most iterations reported for it.
// Keys are never removed and values never decrease.
type RunRecord struct {
	runs map[int]int
}

// Record stores iterations for run and reports whether the record changed.
// A value not larger than the known one is ignored.
func (r *RunRecord) Record(run, iterations int) bool {
	if r.runs == nil {
		r.runs = make(map[int]int)
	}
	if prev, ok := r.runs[run]; ok && iterations <= prev {
		return false
	}
	r.runs[run] = iterations
	return true
}

// Get returns the iterations recorded for run.
func (r RunRecord) Get(run int) (int, bool) {
	v, ok := r.runs[run]
	return v, ok
}

// Len returns the number of distinct runs seen.
func (r RunRecord) Len() int {
	return len(r.runs)
}

// Runs returns the known run indices in ascending order.
func (r RunRecord) Runs() []int {
	return slices.Sorted(maps.Keys(r.runs))
}

// Map returns a copy of the record.
func (r RunRecord) Map() map[int]int {
	return maps.Clone(r.runs)
}

// BatchSession is a multi-run batch.
type BatchSession struct {
	*core
	*batchState
}

// batchState is guarded by core.mu.
type batchState struct {
	expected    int
	record      RunRecord
	message     string
	artifactRef string
}

// BatchSnapshot is a consistent copy of a BatchSession.
type BatchSnapshot struct {
	ID    ID
	State State
	Err   error
	// Runs maps run index to iterations completed.
	Runs map[int]int
	// ExpectedRuns is a display hint; zero means unknown.
	ExpectedRuns int
	Message      string
	ArtifactRef  string
	Malformed    int
	StartedAt    time.Time
	EndedAt      time.Time
}

// NewBatchSession creates an Idle batch. expectedRuns is only used for
// progress display and may be zero.
func NewBatchSession(ps params.ParameterSet, expectedRuns int, deps Deps) *BatchSession {
	bs := &batchState{expected: max(expectedRuns, 0)}
	return &BatchSession{
		core:       newCore(KindBatch, VariantPlain, ps, deps, bs),
		batchState: bs,
	}
}

// Snapshot returns a copy of the session's state and accumulator.
func (s *BatchSession) Snapshot() BatchSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := s.record.Map()
	if runs == nil {
		runs = map[int]int{}
	}
	return BatchSnapshot{
		ID:           s.id,
		State:        s.state,
		Err:          s.err,
		Runs:         runs,
		ExpectedRuns: s.expected,
		Message:      s.message,
		ArtifactRef:  s.artifactRef,
		Malformed:    s.malformed,
		StartedAt:    s.startedAt,
		EndedAt:      s.endedAt,
	}
}

// ArtifactRef returns the aggregate artifact reference once Completed.
func (s *BatchSession) ArtifactRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifactRef
}

// Fraction estimates batch progress in [0, 1] from the ExpectedRuns hint and
// the iterations target. It returns 0 when no hint is set.
func (s BatchSnapshot) Fraction(iterationsPerRun int) float64 {
	if s.State == Completed {
		return 1
	}
	if s.ExpectedRuns <= 0 || iterationsPerRun <= 0 {
		return 0
	}
	total := 0
	for _, it := range s.Runs {
		total += min(it, iterationsPerRun)
	}
	return min(float64(total)/float64(s.ExpectedRuns*iterationsPerRun), 1)
}

func (b *batchState) startLine() string {
	if b.expected > 0 {
		return fmt.Sprintf("Running %d ACO runs in real time...", b.expected)
	}
	return "Running multiple ACO runs in real time..."
}

func (b *batchState) accumulate(ev events.Event) []string {
	p := ev.BatchProgress
	if !b.record.Record(p.RunIndex, p.IterationsCompleted) {
		return nil
	}
	return []string{fmt.Sprintf("Run %d: %d iterations", p.RunIndex, p.IterationsCompleted)}
}

func (b *batchState) complete(ev events.Event) []string {
	b.message = ev.BatchFinal.Message
	b.artifactRef = ev.BatchFinal.AggregateArtifactRef
	return []string{ev.BatchFinal.Message}
}

func (b *batchState) failLine(err error) string {
	if isCanceled(err) {
		return "Batch run cancelled."
	}
	return "Batch run failed: " + err.Error()
}
