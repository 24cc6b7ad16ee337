package session

import (
	"fmt"

	"github.com/zjrosen/antrail/internal/events"
)

// Action is what a session does with an event.
type Action int

const (
	// ActionIgnore drops the event without comment: the session is not
	// streaming.
	ActionIgnore Action = iota
	// ActionAccumulate records progress.
	ActionAccumulate
	// ActionComplete records the result and completes the session.
	ActionComplete
	// ActionFail fails the session.
	ActionFail
	// ActionDiscard drops a malformed or wrong-family event and logs it.
	ActionDiscard
)

func (a Action) String() string {
	switch a {
	case ActionAccumulate:
		return "accumulate"
	case ActionComplete:
		return "complete"
	case ActionFail:
		return "fail"
	case ActionDiscard:
		return "discard"
	default:
		return "ignore"
	}
}

// Transition is the outcome of Step.
type Transition struct {
	From   State
	To     State
	Action Action
	// Reason explains a Discard or Fail.
	Reason string
}

// Changed reports whether the transition moves the session.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Step is the session reducer. It is pure: the same kind, state and event
// always produce the same transition, and only Streaming sessions (or a
// Starting session hit by a transport error) ever move.
func Step(kind Kind, state State, ev events.Event) Transition {
	tr := Transition{From: state, To: state, Action: ActionIgnore}

	if ev.Kind == events.KindTransportError {
		if state.IsActive() {
			tr.To = Failed
			tr.Action = ActionFail
			tr.Reason = transportReason(ev)
		}
		return tr
	}
	if state != Streaming {
		return tr
	}

	switch {
	case ev.Kind == events.KindMalformed:
		tr.Action = ActionDiscard
		tr.Reason = ev.Reason
	case !belongsTo(kind, ev.Kind):
		tr.Action = ActionDiscard
		tr.Reason = fmt.Sprintf("%s event on %s session", ev.Kind, kind)
	case ev.Kind.IsTerminal():
		tr.To = Completed
		tr.Action = ActionComplete
	default:
		tr.Action = ActionAccumulate
	}
	return tr
}

func belongsTo(kind Kind, ek events.Kind) bool {
	switch kind {
	case KindRun:
		return ek == events.KindProgress || ek == events.KindFinal
	case KindBatch:
		return ek == events.KindBatchProgress || ek == events.KindBatchFinal
	}
	return false
}

func transportReason(ev events.Event) string {
	if ev.Err == nil {
		return "transport error"
	}
	return ev.Err.Error()
}
