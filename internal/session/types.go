// Package session owns the lifecycle of optimization runs: a RunSession for
// single (plain or seeded) runs and a BatchSession for multi-run batches.
//
// Each session holds exactly one stream while Starting or Streaming, applies
// dispatcher-delivered events through the pure Step reducer, and publishes
// every lifecycle transition as a StateChange.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/antrail/internal/stream"
)

var (
	// ErrInvalidStart is returned when Start is called on a session that has
	// already left Idle.
	ErrInvalidStart = errors.New("session can only be started from idle")
	// ErrSessionActive is returned by Manager when a session of the same
	// kind is still starting or streaming.
	ErrSessionActive = errors.New("a session of this kind is already active")
)

// ID uniquely identifies a session.
type ID string

// NewID generates a random session ID.
func NewID() ID {
	return ID(uuid.New().String())
}

func (id ID) String() string {
	return string(id)
}

// Short returns the first eight characters, for log lines and headers.
func (id ID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// IsValid reports whether id parses as a UUID.
func (id ID) IsValid() bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(string(id))
	return err == nil
}

// State is the lifecycle state of a session.
// Valid transitions:
//
//	Idle      -> Starting
//	Starting  -> Streaming, Failed
//	Streaming -> Completed, Failed
//	Completed -> (terminal)
//	Failed    -> (terminal)
type State string

const (
	Idle      State = "idle"
	Starting  State = "starting"
	Streaming State = "streaming"
	Completed State = "completed"
	Failed    State = "failed"
)

var validTransitions = map[State]map[State]bool{
	Idle: {
		Starting: true,
	},
	Starting: {
		Streaming: true,
		Failed:    true,
	},
	Streaming: {
		Completed: true,
		Failed:    true,
	},
	Completed: {},
	Failed:    {},
}

func (s State) String() string {
	return string(s)
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal reports whether s is Completed or Failed.
func (s State) IsTerminal() bool {
	return s == Completed || s == Failed
}

// IsActive reports whether a session in s owns a stream handle.
func (s State) IsActive() bool {
	return s == Starting || s == Streaming
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s State) CanTransitionTo(target State) bool {
	return validTransitions[s][target]
}

// Kind distinguishes single runs from batches.
type Kind string

const (
	KindRun   Kind = "run"
	KindBatch Kind = "batch"
)

func (k Kind) String() string {
	return string(k)
}

// Variant selects the single-run wire contract.
type Variant string

const (
	VariantPlain  Variant = "plain"
	VariantSeeded Variant = "seeded"
)

func (v Variant) String() string {
	return string(v)
}

// Endpoint returns the stream path for a session of kind k using variant v.
// Batches ignore the variant.
func Endpoint(k Kind, v Variant) stream.Endpoint {
	switch {
	case k == KindBatch:
		return stream.EndpointBatch
	case v == VariantSeeded:
		return stream.EndpointRunSeeded
	default:
		return stream.EndpointRun
	}
}

// StateChange is published for every lifecycle transition.
type StateChange struct {
	SessionID ID
	Kind      Kind
	Variant   Variant
	From      State
	To        State
	// Err is the failure cause when To is Failed.
	Err error
	At  time.Time
}
