package log

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	at := time.Date(2025, 12, 6, 10, 45, 0, 0, time.UTC)
	got := format(at, LevelError, CatStream, "dial failed", "endpoint", "/run_aco_sse", "status", 502)
	require.Equal(t, "2025-12-06T10:45:00 [ERROR] [stream] dial failed endpoint=/run_aco_sse status=502\n", got)

	got = format(at, LevelInfo, CatSession, "orphan", "key")
	require.True(t, strings.HasSuffix(got, " key=<missing>\n"))
}

func TestInitWriter_RespectsLevel(t *testing.T) {
	t.Cleanup(Reset)

	var buf bytes.Buffer
	InitWriter(&buf, LevelWarn)

	Debug(CatSession, "hidden")
	Info(CatSession, "hidden too")
	Warn(CatSession, "visible", "id", "abc")
	ErrorErr(CatArtifact, "fetch failed", errors.New("boom"))

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "[WARN] [session] visible id=abc")
	require.Contains(t, out, "[ERROR] [artifact] fetch failed error=boom")

	SetMinLevel(LevelDebug)
	Debug(CatSession, "now shown")
	require.Contains(t, buf.String(), "now shown")

	require.True(t, Enabled())
	SetEnabled(false)
	require.False(t, Enabled())
	Error(CatSession, "muted")
	require.NotContains(t, buf.String(), "muted")
}

func TestLog_NoLoggerIsNoop(t *testing.T) {
	Reset()
	require.False(t, Enabled())
	require.NotPanics(t, func() {
		Info(CatUI, "nobody listening")
		SetEnabled(true)
		SetMinLevel(LevelError)
	})
	require.Nil(t, NewListener(context.Background()))
}

func TestInit_WritesToFile(t *testing.T) {
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "debug.log")
	cleanup, err := Init(path)
	require.NoError(t, err)

	Info(CatConfig, "loaded", "file", "config.yaml")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[INFO] [config] loaded file=config.yaml")
}

func TestNewListener_ReceivesEntries(t *testing.T) {
	t.Cleanup(Reset)

	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewListener(ctx)
	require.NotNil(t, listener)

	Info(CatDispatch, "classified", "kind", "progress")

	msg := listener.Listen()()
	event, ok := msg.(LogEvent)
	require.True(t, ok)
	require.Contains(t, event.Payload, "classified kind=progress")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	require.Equal(t, LevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, LevelDebug, lvl)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}
