package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/zjrosen/antrail/internal/journal"
	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/params"
	"github.com/zjrosen/antrail/internal/pubsub"
)

// Mode is a user-facing launch action.
type Mode string

const (
	ModeRun    Mode = "run"
	ModeSeeded Mode = "run-seeded"
	ModeBatch  Mode = "run-batch"
)

// Session is the lifecycle surface common to run and batch sessions.
type Session interface {
	ID() ID
	Kind() Kind
	Variant() Variant
	State() State
	Err() error
	Done() <-chan struct{}
	Wait(ctx context.Context) error
	Cancel()
}

var (
	_ Session = (*RunSession)(nil)
	_ Session = (*BatchSession)(nil)
)

// Manager owns one session slot per kind. A second start of the same kind
// is rejected until the current one reaches a terminal state. A run and a
// batch may stream at the same time. An Idle session only holds its slot
// while its Start is in flight.
type Manager struct {
	deps   Deps
	broker *pubsub.Broker[StateChange]

	mu           sync.Mutex
	run          *RunSession
	batch        *BatchSession
	expectedRuns int
}

// NewManager creates a manager. deps.Publisher is replaced by the manager's
// own broker; subscribe to it with Broker.
func NewManager(deps Deps) *Manager {
	broker := pubsub.NewBroker[StateChange]()
	deps.Publisher = broker
	return &Manager{
		deps:   deps.withDefaults(),
		broker: broker,
	}
}

// Broker returns the StateChange broker every managed session publishes to.
func (m *Manager) Broker() *pubsub.Broker[StateChange] {
	return m.broker
}

// Journal returns the shared activity journal.
func (m *Manager) Journal() *journal.Journal {
	return m.deps.Journal
}

// SetExpectedRuns sets the display hint used for new batches.
func (m *Manager) SetExpectedRuns(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expectedRuns = n
}

// Run returns the current or most recent run session, or nil.
func (m *Manager) Run() *RunSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run
}

// Batch returns the current or most recent batch session, or nil.
func (m *Manager) Batch() *BatchSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batch
}

// Launch validates raw input and starts the session mode asks for.
// Validation failures are journaled and returned without any network
// activity.
func (m *Manager) Launch(ctx context.Context, mode Mode, raw params.RawInput) (Session, error) {
	if mode != ModeSeeded {
		raw.SeedSolution = nil
	}
	ps, err := params.Validate(raw)
	if err != nil {
		log.Warn(log.CatSession, "launch rejected", "mode", mode, "error", err)
		m.deps.Journal.Failf("Invalid parameters: %v", err)
		return nil, err
	}

	switch mode {
	case ModeRun, ModeSeeded:
		variant := VariantPlain
		if mode == ModeSeeded {
			variant = VariantSeeded
		}
		s, err := m.StartRun(ctx, ps, variant)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ModeBatch:
		s, err := m.StartBatch(ctx, ps)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown launch mode %q", mode)
	}
}

// StartRun starts a single run unless one is already active.
func (m *Manager) StartRun(ctx context.Context, ps params.ParameterSet, variant Variant) (*RunSession, error) {
	m.mu.Lock()
	if m.run != nil && !m.run.State().IsTerminal() {
		current := m.run
		m.mu.Unlock()
		return nil, m.rejectActive(KindRun, current)
	}
	prev := m.run
	s := NewRunSession(ps, variant, m.deps)
	m.run = s
	m.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		m.mu.Lock()
		if m.run == s {
			m.run = prev
		}
		m.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// StartBatch starts a batch unless one is already active.
func (m *Manager) StartBatch(ctx context.Context, ps params.ParameterSet) (*BatchSession, error) {
	m.mu.Lock()
	if m.batch != nil && !m.batch.State().IsTerminal() {
		current := m.batch
		m.mu.Unlock()
		return nil, m.rejectActive(KindBatch, current)
	}
	prev := m.batch
	s := NewBatchSession(ps, m.expectedRuns, m.deps)
	m.batch = s
	m.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		m.mu.Lock()
		if m.batch == s {
			m.batch = prev
		}
		m.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// Cancel aborts the active session of kind k and reports whether there was
// one.
func (m *Manager) Cancel(k Kind) bool {
	var s Session
	m.mu.Lock()
	switch k {
	case KindRun:
		if m.run != nil {
			s = m.run
		}
	case KindBatch:
		if m.batch != nil {
			s = m.batch
		}
	}
	m.mu.Unlock()

	if s == nil || !s.State().IsActive() {
		return false
	}
	s.Cancel()
	return true
}

// Shutdown cancels every active session and waits for them to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	var active []Session
	if m.run != nil && m.run.State().IsActive() {
		active = append(active, m.run)
	}
	if m.batch != nil && m.batch.State().IsActive() {
		active = append(active, m.batch)
	}
	m.mu.Unlock()

	for _, s := range active {
		s.Cancel()
	}
	for _, s := range active {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) rejectActive(k Kind, current Session) error {
	err := fmt.Errorf("%w: %s %s is %s", ErrSessionActive, k, current.ID().Short(), current.State())
	log.Warn(log.CatSession, "start rejected", "kind", k, "active", current.ID().Short())
	m.deps.Journal.Failf("A %s is already in progress.", k)
	return err
}
