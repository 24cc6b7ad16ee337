package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/antrail/internal/journal"
	"github.com/zjrosen/antrail/internal/keys"
	"github.com/zjrosen/antrail/internal/session"
	"github.com/zjrosen/antrail/internal/ui/styles"
)

type buttonID string

const (
	buttonLoad      buttonID = "load"
	buttonRun       buttonID = "run"
	buttonRunSeeded buttonID = "run-seeded"
	buttonBatch     buttonID = "batch"
	buttonCancel    buttonID = "cancel"
	buttonGraph     buttonID = "graph"
	buttonBestRoute buttonID = "best-route"
	buttonBoxplot   buttonID = "boxplot"
	buttonFitness   buttonID = "fitness"
	buttonAggregate buttonID = "aggregate"
	buttonSave      buttonID = "save"
)

type button struct {
	id      buttonID
	label   string
	binding key.Binding
	style   lipgloss.Style
}

func (b button) zoneID() string {
	return "btn-" + string(b.id)
}

func fieldZoneID(f Field) string {
	return fmt.Sprintf("field-%d", f)
}

// buttons in display order; an empty entry starts the artifact group.
var buttons = []button{
	{buttonLoad, "Load", keys.Action.LoadInstance, styles.SecondaryButtonStyle},
	{buttonRun, "Run", keys.Action.Run, styles.PrimaryButtonStyle},
	{buttonRunSeeded, "Run seeded", keys.Action.RunSeeded, styles.PrimaryButtonStyle},
	{buttonBatch, "Batch", keys.Action.RunBatch, styles.PrimaryButtonStyle},
	{buttonCancel, "Cancel", keys.Action.Cancel, styles.DangerButtonStyle},
	{buttonGraph, "Graph", keys.Action.ViewGraph, styles.SecondaryButtonStyle},
	{buttonBestRoute, "Best route", keys.Action.ViewBestRoute, styles.SecondaryButtonStyle},
	{buttonBoxplot, "Boxplot", keys.Action.ViewBoxplot, styles.SecondaryButtonStyle},
	{buttonFitness, "Fitness", keys.Action.ViewFitness, styles.SecondaryButtonStyle},
	{buttonAggregate, "Aggregate", keys.Action.ViewAggregate, styles.SecondaryButtonStyle},
	{buttonSave, "Save", keys.Action.Save, styles.SecondaryButtonStyle},
}

const (
	formPanelWidth = 40
	headerHeight   = 1
	buttonsHeight  = 1
	footerHeight   = 1
	topPanelHeight = int(fieldCount) + 2
)

// layout sizes the journal viewport and progress bars for the window.
func (m *Model) layout() {
	right := max(m.width-formPanelWidth, 20)
	m.runBar.Width = max(right-4, 10)
	m.batchBar.Width = max(right-4, 10)

	journalHeight := max(m.height-headerHeight-topPanelHeight-buttonsHeight-footerHeight-2, 3)
	m.journal.Width = max(m.width/2-2, 10)
	m.journal.Height = journalHeight
	m.refreshJournal()
}

// refreshJournal re-reads the journal tail into the viewport, keeping the
// view pinned to the bottom when it already was.
func (m *Model) refreshJournal() {
	entries := m.deps.Manager.Journal().Entries()
	if n := m.deps.Config.UI.JournalLines; n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		text := styles.Wrap(e.Text, max(m.journal.Width, 1))
		if e.Severity == journal.Failure {
			text = styles.FailureStyle.Render(text)
		}
		lines = append(lines, text)
	}
	atBottom := m.journal.AtBottom()
	m.journal.SetContent(strings.Join(lines, "\n"))
	if atBottom || m.journal.YOffset == 0 {
		m.journal.GotoBottom()
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	view := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderForm(), m.renderProgress()),
		m.renderButtons(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderJournal(), m.renderCanvas()),
		m.renderFooter(),
	)

	if m.showHelp {
		view = m.help.Overlay(view)
	}
	if m.toaster.Visible() {
		view = m.toaster.Overlay(view, m.width, m.height)
	}
	if m.deps.Debug && m.logOverlay.Visible() {
		view = m.logOverlay.Overlay(view)
	}
	return zone.Scan(view)
}

func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Render("antrail")
	server := styles.MutedStyle.Render(m.deps.Config.Server.URL)

	runState, batchState := session.Idle, session.Idle
	if s := m.deps.Manager.Run(); s != nil {
		runState = s.State()
	}
	if s := m.deps.Manager.Batch(); s != nil {
		batchState = s.State()
	}
	states := "run " + styles.StateBadge(runState.String()) + "  batch " + styles.StateBadge(batchState.String())

	left := title + " " + server
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(states), 1)
	return left + strings.Repeat(" ", gap) + states
}

func (m Model) renderForm() string {
	inner := formPanelWidth - 2
	rows := strings.Split(m.form.View(inner), "\n")
	for i := range rows {
		rows[i] = zone.Mark(fieldZoneID(Field(i)), rows[i])
	}
	return styles.RenderPanel(strings.Join(rows, "\n"), "Parameters", formPanelWidth, topPanelHeight, m.form.active)
}

func (m Model) renderProgress() string {
	width := max(m.width-formPanelWidth, 20)
	if !m.deps.Config.UI.ShowProgress {
		return styles.RenderPanel(styles.MutedStyle.Render("progress hidden"), "Progress", width, topPanelHeight, false)
	}

	var lines []string
	if s := m.deps.Manager.Run(); s != nil {
		snap := s.Snapshot()
		target := s.Params().NumIterations
		done, best := 0, 0.0
		for _, p := range snap.Progress {
			done = max(done, p.Iteration)
			if best == 0 || p.Fitness < best {
				best = p.Fitness
			}
		}
		frac := 0.0
		if target > 0 {
			frac = min(float64(done)/float64(target), 1)
		}
		if snap.State == session.Completed {
			frac = 1
		}
		lines = append(lines,
			fmt.Sprintf("Run %s %s (%s)", snap.ID.Short(), styles.StateBadge(snap.State.String()), snap.Variant),
			m.runBar.ViewAs(frac),
			fmt.Sprintf("iteration %d/%d  best fitness %g", done, target, best),
		)
		if snap.Malformed > 0 {
			lines = append(lines, styles.FailureStyle.Render(fmt.Sprintf("%d malformed events ignored", snap.Malformed)))
		}
	} else {
		lines = append(lines, styles.MutedStyle.Render("No run yet"))
	}

	lines = append(lines, "")
	if s := m.deps.Manager.Batch(); s != nil {
		snap := s.Snapshot()
		runs := fmt.Sprintf("%d runs", len(snap.Runs))
		if snap.ExpectedRuns > 0 {
			runs = fmt.Sprintf("%d/%d runs", len(snap.Runs), snap.ExpectedRuns)
		}
		lines = append(lines,
			fmt.Sprintf("Batch %s %s", snap.ID.Short(), styles.StateBadge(snap.State.String())),
			m.batchBar.ViewAs(snap.Fraction(s.Params().NumIterations)),
			runs,
		)
	} else {
		lines = append(lines, styles.MutedStyle.Render("No batch yet"))
	}
	return styles.RenderPanel(strings.Join(lines, "\n"), "Progress", width, topPanelHeight, false)
}

func (m Model) renderButtons() string {
	parts := make([]string, 0, len(buttons))
	for i, b := range buttons {
		style := b.style
		if ok, _ := m.enabled(b.id); !ok {
			style = styles.DisabledButtonStyle
		}
		label := fmt.Sprintf("%s %s", b.binding.Help().Key, b.label)
		parts = append(parts, zone.Mark(b.zoneID(), style.Render(label)))
		if b.id == buttonCancel && i < len(buttons)-1 {
			parts = append(parts, "  ")
		} else {
			parts = append(parts, " ")
		}
	}
	return styles.Truncate(strings.Join(parts, ""), max(m.width, 1))
}

func (m Model) renderJournal() string {
	width := m.journal.Width + 2
	return styles.RenderPanel(m.journal.View(), "Journal", width, m.journal.Height+2, false)
}

func (m Model) renderCanvas() string {
	width := max(m.width-m.journal.Width-2, 10)
	height := m.journal.Height + 2

	if m.view == nil {
		return styles.RenderPanel(styles.MutedStyle.Render("Nothing loaded"), "Canvas", width, height, false)
	}
	lines := []string{
		styles.Wrap(m.view.Describe(), width-2),
		styles.MutedStyle.Render("loaded " + m.view.At.Format("15:04:05")),
	}
	if m.view.Ref != "" {
		lines = append(lines, styles.MutedStyle.Render(m.view.Ref))
	}
	return styles.RenderPanel(strings.Join(lines, "\n"), "Canvas", width, height, false)
}

func (m Model) renderFooter() string {
	var bindings []key.Binding
	if m.form.active {
		bindings = keys.Form.ShortHelp()
	} else {
		bindings = keys.Action.ShortHelp()
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return styles.StatusBarStyle.Render(styles.MutedStyle.Render(strings.Join(parts, " • ")))
}
