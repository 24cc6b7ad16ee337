package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/antrail/internal/events"
	"github.com/zjrosen/antrail/internal/route"
)

func TestState_Transitions(t *testing.T) {
	require.True(t, Idle.CanTransitionTo(Starting))
	require.True(t, Starting.CanTransitionTo(Streaming))
	require.True(t, Starting.CanTransitionTo(Failed))
	require.True(t, Streaming.CanTransitionTo(Completed))
	require.True(t, Streaming.CanTransitionTo(Failed))

	require.False(t, Idle.CanTransitionTo(Streaming))
	require.False(t, Streaming.CanTransitionTo(Starting))
	require.False(t, Completed.CanTransitionTo(Starting))
	require.False(t, Failed.CanTransitionTo(Starting))

	require.True(t, Completed.IsTerminal())
	require.True(t, Failed.IsTerminal())
	require.True(t, Starting.IsActive())
	require.True(t, Streaming.IsActive())
	require.False(t, Idle.IsActive())
	require.False(t, State("bogus").IsValid())
}

func TestEndpoint(t *testing.T) {
	require.EqualValues(t, "/run_aco_sse", Endpoint(KindRun, VariantPlain))
	require.EqualValues(t, "/run_aco_with_solution_sse", Endpoint(KindRun, VariantSeeded))
	require.EqualValues(t, "/run_multiple_aco", Endpoint(KindBatch, VariantPlain))
	require.EqualValues(t, "/run_multiple_aco", Endpoint(KindBatch, VariantSeeded))
}

func TestID(t *testing.T) {
	id := NewID()
	require.True(t, id.IsValid())
	require.Len(t, id.Short(), 8)
	require.False(t, ID("nope").IsValid())
	require.Equal(t, "abc", ID("abc").Short())
}

func TestStep(t *testing.T) {
	progress := events.NewProgress(1, 10)
	final := events.NewFinal("done", route.Route{0, 1, 0})
	batchProgress := events.NewBatchProgress(1, 5)
	batchFinal := events.NewBatchFinal("ok", "/static/boxplot.png")
	malformed := events.NewMalformed("{}", "unrecognized payload shape")
	transport := events.NewTransportError(errors.New("reset"))

	tests := []struct {
		name   string
		kind   Kind
		state  State
		ev     events.Event
		to     State
		action Action
	}{
		{"run progress", KindRun, Streaming, progress, Streaming, ActionAccumulate},
		{"run final", KindRun, Streaming, final, Completed, ActionComplete},
		{"run gets batch progress", KindRun, Streaming, batchProgress, Streaming, ActionDiscard},
		{"run gets batch final", KindRun, Streaming, batchFinal, Streaming, ActionDiscard},
		{"batch progress", KindBatch, Streaming, batchProgress, Streaming, ActionAccumulate},
		{"batch final", KindBatch, Streaming, batchFinal, Completed, ActionComplete},
		{"batch gets run final", KindBatch, Streaming, final, Streaming, ActionDiscard},
		{"malformed while streaming", KindRun, Streaming, malformed, Streaming, ActionDiscard},
		{"transport while streaming", KindRun, Streaming, transport, Failed, ActionFail},
		{"transport while starting", KindBatch, Starting, transport, Failed, ActionFail},
		{"transport while idle", KindRun, Idle, transport, Idle, ActionIgnore},
		{"progress while starting", KindRun, Starting, progress, Starting, ActionIgnore},
		{"final after completed", KindRun, Completed, final, Completed, ActionIgnore},
		{"progress after failed", KindRun, Failed, progress, Failed, ActionIgnore},
		{"transport after completed", KindBatch, Completed, transport, Completed, ActionIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Step(tt.kind, tt.state, tt.ev)
			require.Equal(t, tt.state, tr.From)
			require.Equal(t, tt.to, tr.To)
			require.Equal(t, tt.action, tr.Action)
		})
	}
}

func TestStep_DiscardReason(t *testing.T) {
	tr := Step(KindRun, Streaming, events.NewBatchProgress(2, 3))
	require.Equal(t, "batch_progress event on run session", tr.Reason)

	tr = Step(KindRun, Streaming, events.NewTransportError(errors.New("reset")))
	require.Equal(t, "reset", tr.Reason)
}

func genEvent() *rapid.Generator[events.Event] {
	return rapid.Custom(func(t *rapid.T) events.Event {
		switch rapid.IntRange(0, 5).Draw(t, "kind") {
		case 0:
			return events.NewProgress(rapid.IntRange(1, 100).Draw(t, "it"), rapid.Float64Range(0, 1e4).Draw(t, "fit"))
		case 1:
			return events.NewFinal("done", route.Route{0, 1, 0})
		case 2:
			return events.NewBatchProgress(rapid.IntRange(1, 10).Draw(t, "run"), rapid.IntRange(0, 100).Draw(t, "iters"))
		case 3:
			return events.NewBatchFinal("ok", "/b.png")
		case 4:
			return events.NewMalformed("x", "bad")
		default:
			return events.NewTransportError(errors.New("boom"))
		}
	})
}

func TestStep_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom([]Kind{KindRun, KindBatch}).Draw(t, "session")
		evs := rapid.SliceOf(genEvent()).Draw(t, "events")

		state := Streaming
		terminalAt := -1
		for i, ev := range evs {
			tr := Step(kind, state, ev)

			if tr.Changed() && !state.CanTransitionTo(tr.To) {
				t.Fatalf("illegal transition %s -> %s", state, tr.To)
			}
			if state.IsTerminal() && (tr.Changed() || tr.Action != ActionIgnore) {
				t.Fatalf("event %d acted on terminal state %s", i, state)
			}
			if ev.Kind == events.KindMalformed && tr.Changed() {
				t.Fatalf("malformed event changed state")
			}
			if tr.To == Starting {
				t.Fatalf("re-entered starting")
			}
			if tr.To.IsTerminal() && terminalAt < 0 {
				terminalAt = i
			}
			state = tr.To
		}

		if terminalAt < 0 {
			require.Equal(t, Streaming, state)
		}
	})
}

func TestStep_IsPure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom([]Kind{KindRun, KindBatch}).Draw(t, "session")
		state := rapid.SampledFrom([]State{Idle, Starting, Streaming, Completed, Failed}).Draw(t, "state")
		ev := genEvent().Draw(t, "event")
		require.Equal(t, Step(kind, state, ev), Step(kind, state, ev))
	})
}
