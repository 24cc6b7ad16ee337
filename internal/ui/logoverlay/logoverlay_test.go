package logoverlay

import (
	"bytes"
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/pubsub"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func entry(s string) log.LogEvent {
	return log.LogEvent{Type: pubsub.CreatedEvent, Payload: s + "\n"}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNew_Hidden(t *testing.T) {
	m := New()
	require.False(t, m.Visible())
	require.Empty(t, m.View())
	require.Equal(t, "bg", m.Overlay("bg"))
}

func TestToggle(t *testing.T) {
	m := New()
	m.Toggle()
	require.True(t, m.Visible())
	m.Toggle()
	require.False(t, m.Visible())
}

func TestUpdate_BuffersWhileHidden(t *testing.T) {
	m := New()
	m, _ = m.Update(entry("2026-01-01T00:00:00 [INFO] [session] starting id=abc"))
	require.Len(t, m.Entries(), 1)
	require.NotContains(t, m.Entries()[0], "\n")
}

func TestUpdate_CapsBuffer(t *testing.T) {
	m := New()
	for range maxEntries + 10 {
		m, _ = m.Update(entry("[DEBUG] [stream] frame"))
	}
	require.Len(t, m.Entries(), maxEntries)
}

func TestView_FiltersByLevel(t *testing.T) {
	m := New()
	m.SetSize(100, 30)
	m, _ = m.Update(entry("[DEBUG] [dispatch] delivered"))
	m, _ = m.Update(entry("[WARN] [session] discarded event"))
	m.Toggle()

	view := m.View()
	require.Contains(t, view, "delivered")
	require.Contains(t, view, "discarded event")

	m, _ = m.Update(key("w"))
	view = m.View()
	require.NotContains(t, view, "delivered")
	require.Contains(t, view, "discarded event")

	m, _ = m.Update(key("c"))
	require.Contains(t, m.View(), "No logs to display")
}

func TestUpdate_EscCloses(t *testing.T) {
	m := New()
	m.SetSize(80, 24)
	m.Toggle()

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, m.Visible())
	require.NotNil(t, cmd)
	require.Equal(t, CloseMsg{}, cmd())
}

func TestListen_FollowsLogger(t *testing.T) {
	var buf bytes.Buffer
	log.InitWriter(&buf, log.LevelDebug)
	t.Cleanup(log.Reset)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New()
	cmd := m.Listen(ctx)
	require.NotNil(t, cmd)

	log.Info(log.CatUI, "hello overlay")
	msg := cmd()
	ev, ok := msg.(log.LogEvent)
	require.True(t, ok)
	require.Contains(t, ev.Payload, "hello overlay")

	m, next := m.Update(msg)
	require.Len(t, m.Entries(), 1)
	require.NotNil(t, next)
}

func TestListen_LoggingOff(t *testing.T) {
	log.Reset()
	m := New()
	require.Nil(t, m.Listen(context.Background()))
}
