package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/antrail/internal/journal"
	"github.com/zjrosen/antrail/internal/params"
	"github.com/zjrosen/antrail/internal/stream"
)

func rawScenario() params.RawInput {
	return params.RawInput{
		Alpha: "1", Beta: "2", Evaporation: "0.5", Q: "100", NumAnts: "10", NumIterations: "2",
	}
}

func strPtr(s string) *string { return &s }

func awaitOpen(t *testing.T, o *stream.FakeOpener) *stream.Fake {
	t.Helper()
	select {
	case f := <-o.Opened():
		return f
	case <-time.After(2 * time.Second):
		require.FailNow(t, "stream never opened")
	}
	return nil
}

func TestManager_MalformedSeedNeverOpensStream(t *testing.T) {
	opener := stream.NewFakeOpener(1)
	j := journal.New()
	m := NewManager(Deps{Opener: opener, Journal: j})

	raw := rawScenario()
	raw.SeedSolution = strPtr("not json")
	s, err := m.Launch(context.Background(), ModeSeeded, raw)

	require.Nil(t, s)
	require.ErrorIs(t, err, params.ErrMalformedSeedSolution)
	require.Empty(t, opener.Calls())
	require.Nil(t, m.Run())
	require.True(t, hasLine(j, "Invalid parameters"))
	require.True(t, hasLine(j, "malformed seed solution"))
}

func TestManager_MalformedSeedProperty(t *testing.T) {
	inputs := []string{"not json", "", "[1, 2", "{}", "[1.5]", "null", `["a"]`, "[1] [2]"}
	for _, in := range inputs {
		opener := stream.NewFakeOpener(1)
		m := NewManager(Deps{Opener: opener})
		raw := rawScenario()
		raw.SeedSolution = strPtr(in)

		_, err := m.Launch(context.Background(), ModeSeeded, raw)
		require.ErrorIs(t, err, params.ErrMalformedSeedSolution, "input %q", in)
		require.Empty(t, opener.Calls(), "input %q", in)
	}
}

func TestManager_SeededWithoutSeedRestoresSlot(t *testing.T) {
	opener := stream.NewFakeOpener(1)
	m := NewManager(Deps{Opener: opener})

	_, err := m.Launch(context.Background(), ModeSeeded, rawScenario())
	require.ErrorIs(t, err, params.ErrMissingSeedSolution)
	require.Nil(t, m.Run())
	require.Empty(t, opener.Calls())
}

func TestManager_PlainRunIgnoresSeedText(t *testing.T) {
	opener := stream.NewFakeOpener(1)
	m := NewManager(Deps{Opener: opener})

	raw := rawScenario()
	raw.SeedSolution = strPtr("not json")
	s, err := m.Launch(context.Background(), ModeRun, raw)
	require.NoError(t, err)
	awaitOpen(t, opener)
	s.Cancel()
	wait(t, s)
}

func TestManager_RejectsSecondStartWhileActive(t *testing.T) {
	opener := stream.NewFakeOpener(4)
	j := journal.New()
	m := NewManager(Deps{Opener: opener, Journal: j})

	first, err := m.Launch(context.Background(), ModeRun, rawScenario())
	require.NoError(t, err)
	f := awaitOpen(t, opener)

	_, err = m.Launch(context.Background(), ModeRun, rawScenario())
	require.ErrorIs(t, err, ErrSessionActive)
	require.True(t, hasLine(j, "A run is already in progress."))
	require.Len(t, opener.Calls(), 1)
	require.Same(t, first, m.Run())

	f.Push(`{"final": true, "mensagem": "ok", "melhor_rota": [0, 1, 0]}`)
	wait(t, first)

	second, err := m.Launch(context.Background(), ModeRun, rawScenario())
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), second.ID())
	require.Len(t, opener.Calls(), 2)
	second.Cancel()
	wait(t, second)
}

func TestManager_RunAndBatchMayInterleave(t *testing.T) {
	opener := stream.NewFakeOpener(4)
	m := NewManager(Deps{Opener: opener})
	m.SetExpectedRuns(2)

	run, err := m.Launch(context.Background(), ModeRun, rawScenario())
	require.NoError(t, err)
	runStream := awaitOpen(t, opener)

	batch, err := m.Launch(context.Background(), ModeBatch, rawScenario())
	require.NoError(t, err)
	batchStream := awaitOpen(t, opener)

	batchStream.Push(`{"run": 1, "iterations": 2}`)
	runStream.Push(`{"iteracao": 1, "fitness": 4}`)
	batchStream.Push(`{"run": 2, "iterations": 2}`)
	runStream.Push(`{"final": true, "mensagem": "ok", "melhor_rota": [0, 1, 0]}`)
	batchStream.Push(`{"final": true, "message": "ok", "boxplot_url": "/b.png"}`)

	wait(t, run)
	wait(t, batch)

	require.Equal(t, Completed, m.Run().State())
	require.Len(t, m.Run().ProgressLog(), 1)
	bs := m.Batch().Snapshot()
	require.Equal(t, Completed, bs.State)
	require.Equal(t, 2, bs.ExpectedRuns)
	require.Len(t, bs.Runs, 2)
}

func TestManager_Cancel(t *testing.T) {
	opener := stream.NewFakeOpener(1)
	m := NewManager(Deps{Opener: opener})

	require.False(t, m.Cancel(KindBatch))

	s, err := m.Launch(context.Background(), ModeBatch, rawScenario())
	require.NoError(t, err)
	awaitOpen(t, opener)

	require.True(t, m.Cancel(KindBatch))
	require.ErrorIs(t, s.Wait(context.Background()), context.Canceled)
	require.False(t, m.Cancel(KindBatch))
}

func TestManager_Shutdown(t *testing.T) {
	opener := stream.NewFakeOpener(1)
	m := NewManager(Deps{Opener: opener})

	_, err := m.Launch(context.Background(), ModeRun, rawScenario())
	require.NoError(t, err)
	awaitOpen(t, opener)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	require.Equal(t, Failed, m.Run().State())
}

func TestManager_PublishesOnBroker(t *testing.T) {
	opener := stream.NewFakeOpener(2)
	opener.OnOpen(script(`{"final": true, "mensagem": "ok", "melhor_rota": [0, 1, 0]}`))
	m := NewManager(Deps{Opener: opener})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := m.Broker().SubscribeReliable(ctx)

	s, err := m.Launch(ctx, ModeRun, rawScenario())
	require.NoError(t, err)

	seen := 0
	for seen < 3 {
		select {
		case ev := <-sub:
			require.Equal(t, s.ID(), ev.Payload.SessionID)
			seen++
		case <-time.After(2 * time.Second):
			require.FailNow(t, "missing transitions")
		}
	}
}

func TestManager_ObserversSeeCompletionBeforeWaitReturns(t *testing.T) {
	opener := stream.NewFakeOpener(2)
	opener.OnOpen(script(`{"final": true, "mensagem": "ok", "melhor_rota": [0, 1, 0]}`))

	var (
		mu   sync.Mutex
		seen []State
	)
	m := NewManager(Deps{
		Opener: opener,
		Observers: []func(StateChange){func(ch StateChange) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, ch.To)
		}},
	})

	s, err := m.Launch(context.Background(), ModeRun, rawScenario())
	require.NoError(t, err)
	require.NoError(t, s.Wait(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []State{Starting, Streaming, Completed}, seen)
}

func TestManager_UnknownMode(t *testing.T) {
	m := NewManager(Deps{Opener: stream.NewFakeOpener(1)})
	_, err := m.Launch(context.Background(), Mode("dance"), rawScenario())
	require.ErrorContains(t, err, "unknown launch mode")
}
