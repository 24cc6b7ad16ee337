// Package help contains the help overlay component.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/antrail/internal/keys"
	"github.com/zjrosen/antrail/internal/ui/markdown"
	"github.com/zjrosen/antrail/internal/ui/overlay"
	"github.com/zjrosen/antrail/internal/ui/styles"
)

// sectionTitles name the groups returned by keys.ActionKeyMap.FullHelp.
var sectionTitles = []string{"Sessions", "Artifacts", "General"}

const footer = "Runs and batches stream at the same time; a second start of the same kind waits for the first to finish. " +
	"Artifacts unlock once their data exists: the graph after an instance loads, the best route after a run completes, " +
	"statistics after any run or batch completes."

// Model is the help overlay.
type Model struct {
	width    int
	height   int
	style    string
	rendered string
}

// New creates a help overlay using the given markdown style.
func New(style string) Model {
	return Model{style: style}
}

// SetSize updates the viewport and re-renders the help text.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.rendered = m.render()
	return m
}

// Markdown returns the help text as markdown.
func Markdown() string {
	var b strings.Builder
	b.WriteString("# antrail\n")
	for i, group := range keys.Action.FullHelp() {
		title := fmt.Sprintf("Group %d", i+1)
		if i < len(sectionTitles) {
			title = sectionTitles[i]
		}
		fmt.Fprintf(&b, "\n## %s\n\n", title)
		writeBindings(&b, group)
	}
	b.WriteString("\n## Editing\n\n")
	writeBindings(&b, keys.Form.ShortHelp())
	b.WriteString("\n" + footer + "\n")
	return b.String()
}

func writeBindings(b *strings.Builder, bindings []key.Binding) {
	for _, kb := range bindings {
		h := kb.Help()
		fmt.Fprintf(b, "- `%s` %s\n", h.Key, h.Desc)
	}
}

func (m Model) boxWidth() int {
	return max(min(m.width-4, 72), 20)
}

func (m Model) render() string {
	width := m.boxWidth() - 4
	md := Markdown()
	r, err := markdown.New(m.style, width)
	if err != nil {
		return styles.Wrap(md, width)
	}
	out, err := r.Render(md)
	if err != nil {
		return styles.Wrap(md, width)
	}
	return strings.Trim(out, "\n")
}

// View renders the help box.
func (m Model) View() string {
	content := m.rendered
	if content == "" {
		content = m.render()
	}
	lines := strings.Split(content, "\n")
	if maxLines := m.height - 4; maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.OverlayBorderColor).
		Padding(0, 1).
		Width(m.boxWidth()).
		Render(strings.Join(lines, "\n"))
}

// Overlay renders the help box centered over bg.
func (m Model) Overlay(bg string) string {
	return overlay.Place(overlay.Config{Width: m.width, Height: m.height}, m.View(), bg)
}
