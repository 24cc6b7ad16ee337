package mockserver

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/antrail/internal/events"
	"github.com/zjrosen/antrail/internal/sse"
)

const runQuery = "?alpha=1&beta=2&evaporation=0.5&Q=100&numAnts=4&numIterations=3"

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(opts))
	t.Cleanup(srv.Close)
	return srv
}

func load(t *testing.T, srv *httptest.Server, name string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"instance": name})
	resp, err := http.Post(srv.URL+"/load_instance", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func frames(t *testing.T, srv *httptest.Server, path string) []events.Event {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var out []events.Event
	dec := sse.NewDecoder(resp.Body)
	for {
		f, err := dec.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, events.Classify([]byte(f.Data)))
	}
}

func TestServer_LoadInstance(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp := load(t, srv, "berlin52")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ok map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ok))
	require.Equal(t, "Instance berlin52 loaded successfully.", ok["message"])

	resp = load(t, srv, "nowhere")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var bad map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bad))
	require.Contains(t, bad["error"], "Failed to load instance nowhere")
}

func TestServer_RunWithoutInstanceSendsErrorFrame(t *testing.T) {
	srv := newTestServer(t, Options{})

	got := frames(t, srv, "/run_aco_sse"+runQuery)
	require.Len(t, got, 1)
	require.Equal(t, events.KindMalformed, got[0].Kind)
	require.Contains(t, got[0].Raw, "Load an instance first!")
}

func TestServer_Run(t *testing.T) {
	srv := newTestServer(t, Options{})
	load(t, srv, "square6")

	got := frames(t, srv, "/run_aco_sse"+runQuery)
	require.Len(t, got, 4)
	for i := range 3 {
		require.Equal(t, events.KindProgress, got[i].Kind)
		require.Equal(t, i+1, got[i].Progress.Iteration)
	}
	final := got[3]
	require.Equal(t, events.KindFinal, final.Kind)
	require.Equal(t, 6, final.Final.BestRoute.Len())

	resp, err := http.Get(srv.URL + "/get_best_route")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fig map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fig))
	require.Contains(t, fig, "edge_trace")
	require.Contains(t, fig, "node_trace")
	require.Contains(t, fig, "layout")
}

func TestServer_RunSeeded(t *testing.T) {
	srv := newTestServer(t, Options{})
	load(t, srv, "square4")

	got := frames(t, srv, "/run_aco_with_solution_sse"+runQuery+"&solution=[0,1,2,3]")
	require.Equal(t, events.KindFinal, got[len(got)-1].Kind)

	resp, err := http.Get(srv.URL + "/run_aco_with_solution_sse" + runQuery + "&solution=[0,0]")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Batch(t *testing.T) {
	srv := newTestServer(t, Options{Runs: 3})
	load(t, srv, "square5")

	got := frames(t, srv, "/run_multiple_aco"+runQuery)
	final := got[len(got)-1]
	require.Equal(t, events.KindBatchFinal, final.Kind)
	require.Equal(t, PathBatchBoxplot, final.BatchFinal.AggregateArtifactRef)

	runs := map[int]int{}
	for _, ev := range got[:len(got)-1] {
		require.Equal(t, events.KindBatchProgress, ev.Kind)
		runs[ev.BatchProgress.RunIndex] = ev.BatchProgress.IterationsCompleted
	}
	require.Equal(t, map[int]int{1: 3, 2: 3, 3: 3}, runs)

	resp, err := http.Get(srv.URL + PathBatchBoxplot)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	_, err = png.Decode(resp.Body)
	require.NoError(t, err)
}

func TestServer_Plots(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + "/plot_fitness_evolution")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	load(t, srv, "square6")
	frames(t, srv, "/run_aco_sse"+runQuery)

	for _, path := range []string{"/plot_fitness_evolution", "/plot_iterations_boxplot"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		_, err = png.Decode(resp.Body)
		resp.Body.Close()
		require.NoError(t, err, path)
	}
}

func TestServer_FaultInjection(t *testing.T) {
	// p1, p2, malformed, p3, then the stream is cut before the final frame.
	srv := newTestServer(t, Options{MalformedEvery: 2, DropAfter: 4})
	load(t, srv, "square6")

	got := frames(t, srv, "/run_aco_sse"+runQuery)
	require.Len(t, got, 4)
	var malformed int
	for _, ev := range got {
		require.NotEqual(t, events.KindFinal, ev.Kind)
		if ev.Kind == events.KindMalformed {
			malformed++
			require.True(t, strings.HasPrefix(ev.Raw, "{'debug'"))
		}
	}
	require.Equal(t, 1, malformed)
}

func TestServer_BadParamsSendErrorFrame(t *testing.T) {
	srv := newTestServer(t, Options{})
	load(t, srv, "square6")

	got := frames(t, srv, "/run_multiple_aco?alpha=x")
	require.Len(t, got, 1)
	require.Equal(t, events.KindMalformed, got[0].Kind)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Options{}).Serve(ctx, l) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + l.Addr().String() + "/get_graph")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusBadRequest
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
