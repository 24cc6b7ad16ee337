package events

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/antrail/internal/route"
)

func TestClassify_KnownShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{
			name: "progress",
			raw:  `{"iteracao": 1, "fitness": 120.5}`,
			want: NewProgress(1, 120.5),
		},
		{
			name: "progress with integral fitness",
			raw:  `{"iteracao": 3, "fitness": 98}`,
			want: NewProgress(3, 98),
		},
		{
			name: "final",
			raw:  `{"final": true, "mensagem": "done", "melhor_rota": [0, 3, 1, 2, 0]}`,
			want: NewFinal("done", route.Route{0, 3, 1, 2, 0}),
		},
		{
			name: "batch progress",
			raw:  `{"run": 2, "iterations": 5}`,
			want: NewBatchProgress(2, 5),
		},
		{
			name: "batch progress with zero iterations",
			raw:  `{"run": 1, "iterations": 0}`,
			want: NewBatchProgress(1, 0),
		},
		{
			name: "batch final",
			raw:  `{"final": true, "message": "all runs done", "boxplot_url": "/static/boxplot.png"}`,
			want: NewBatchFinal("all runs done", "/static/boxplot.png"),
		},
		{
			name: "extra fields are tolerated",
			raw:  `{"iteracao": 4, "fitness": 1.5, "elapsed_ms": 12}`,
			want: NewProgress(4, 1.5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify([]byte(tt.raw))
			require.Equal(t, tt.want.Kind, got.Kind, "reason: %s", got.Reason)
			require.Equal(t, tt.raw, got.Raw)

			got.Raw = ""
			require.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"empty", "", "empty payload"},
		{"python repr error frame", `{'error': 'Carregue uma instância primeiro!'}`, "not a JSON object"},
		{"json array", `[1, 2]`, "not a JSON object"},
		{"null", `null`, "not a JSON object"},
		{"server error object", `{"error": "boom"}`, "server reported error: boom"},
		{"unknown shape", `{"hello": "world"}`, "unrecognized"},
		{"partial progress", `{"iteracao": 1}`, "unrecognized"},
		{"iteration zero", `{"iteracao": 0, "fitness": 1}`, "must be >= 1"},
		{"iteration fractional", `{"iteracao": 1.5, "fitness": 1}`, "not an integer"},
		{"iteration quoted", `{"iteracao": "1", "fitness": 1}`, "not a number"},
		{"fitness null", `{"iteracao": 1, "fitness": null}`, "not a number"},
		{"final false", `{"final": false, "mensagem": "x", "melhor_rota": []}`, "must be true"},
		{"final route not array", `{"final": true, "mensagem": "x", "melhor_rota": "0,1"}`, "melhor_rota"},
		{"final route null", `{"final": true, "mensagem": "x", "melhor_rota": null}`, "melhor_rota"},
		{"batch run zero", `{"run": 0, "iterations": 3}`, "must be >= 1"},
		{"batch negative iterations", `{"run": 1, "iterations": -1}`, "must be >= 0"},
		{"batch final empty url", `{"final": true, "message": "x", "boxplot_url": ""}`, "empty"},
		{"ambiguous progress and batch", `{"iteracao": 1, "fitness": 2, "run": 1, "iterations": 3}`, "ambiguous"},
		{"ambiguous finals", `{"final": true, "mensagem": "a", "melhor_rota": [], "message": "b", "boxplot_url": "/x"}`, "ambiguous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify([]byte(tt.raw))
			require.Equal(t, KindMalformed, got.Kind)
			require.Contains(t, got.Reason, tt.reason)
			require.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestKind_IsTerminal(t *testing.T) {
	require.True(t, KindFinal.IsTerminal())
	require.True(t, KindBatchFinal.IsTerminal())
	require.True(t, KindTransportError.IsTerminal())
	require.False(t, KindProgress.IsTerminal())
	require.False(t, KindBatchProgress.IsTerminal())
	require.False(t, KindMalformed.IsTerminal())
}

// Classify is total: arbitrary bytes never panic and never yield a
// transport error.
func TestClassify_TotalOnArbitraryInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOf(rapid.Byte()).Draw(t, "raw")
		ev := Classify(raw)
		if ev.Kind == KindTransportError {
			t.Fatalf("classify produced a transport error")
		}
		if ev.Kind == KindMalformed && ev.Reason == "" {
			t.Fatalf("malformed event without reason")
		}
	})
}

func TestClassify_GeneratedProgressRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		it := rapid.IntRange(1, 1<<20).Draw(t, "iteration")
		fit := rapid.Float64Range(-1e9, 1e9).Draw(t, "fitness")

		raw, err := json.Marshal(map[string]any{"iteracao": it, "fitness": fit})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		ev := Classify(raw)
		if ev.Kind != KindProgress || ev.Progress.Iteration != it || ev.Progress.Fitness != fit {
			t.Fatalf("got %v for %s", ev, raw)
		}
	})
}

func TestClassify_GeneratedBatchProgress(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		run := rapid.IntRange(-3, 50).Draw(t, "run")
		its := rapid.IntRange(-3, 500).Draw(t, "iterations")

		ev := Classify([]byte(fmt.Sprintf(`{"run": %d, "iterations": %d}`, run, its)))
		valid := run >= 1 && its >= 0
		if valid != (ev.Kind == KindBatchProgress) {
			t.Fatalf("run=%d iterations=%d classified as %s (%s)", run, its, ev.Kind, ev.Reason)
		}
	})
}
