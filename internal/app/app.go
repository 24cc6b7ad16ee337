// Package app contains the root application model.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/antrail/internal/artifact"
	"github.com/zjrosen/antrail/internal/capability"
	"github.com/zjrosen/antrail/internal/config"
	"github.com/zjrosen/antrail/internal/instance"
	"github.com/zjrosen/antrail/internal/journal"
	"github.com/zjrosen/antrail/internal/keys"
	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/pubsub"
	"github.com/zjrosen/antrail/internal/session"
	"github.com/zjrosen/antrail/internal/ui/help"
	"github.com/zjrosen/antrail/internal/ui/logoverlay"
	"github.com/zjrosen/antrail/internal/ui/styles"
	"github.com/zjrosen/antrail/internal/ui/toaster"
	"github.com/zjrosen/antrail/internal/watcher"
)

// Deps are the services the TUI drives.
type Deps struct {
	Config     config.Config
	ConfigPath string
	Manager    *session.Manager
	Controller *capability.Controller
	Requester  *artifact.Requester
	Canvas     *artifact.Canvas
	Loader     *instance.Loader
	// Debug enables the log overlay (ctrl+x).
	Debug bool
}

// Model is the root application state.
type Model struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int

	form     form
	journal  viewport.Model
	runBar   progress.Model
	batchBar progress.Model
	view     *artifact.View

	toaster    toaster.Model
	help       help.Model
	showHelp   bool
	logOverlay logoverlay.Model
	logListen  tea.Cmd

	sessionListener *pubsub.ContinuousListener[session.StateChange]
	capListener     *pubsub.ContinuousListener[capability.Capability]
	journalListener *pubsub.ContinuousListener[journal.Entry]
	canvasListener  *pubsub.ContinuousListener[artifact.View]

	watcherHandle *watcher.Watcher
	configChanges <-chan struct{}
}

// New creates the root model. The config file at deps.ConfigPath is
// watched so edited parameter defaults show up while the TUI runs.
func New(deps Deps) Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		form:     newForm(deps.Config.Server.Instance, deps.Config.Defaults),
		journal:  viewport.New(0, 0),
		runBar:   newBar(),
		batchBar: newBar(),
		toaster:  toaster.New(),
		help:     help.New(deps.Config.UI.MarkdownStyle),

		sessionListener: pubsub.NewReliableListener(ctx, deps.Manager.Broker()),
		capListener:     pubsub.NewReliableListener(ctx, deps.Controller.Broker()),
		journalListener: pubsub.NewContinuousListener(ctx, deps.Manager.Journal().Broker()),
		canvasListener:  pubsub.NewReliableListener(ctx, deps.Canvas.Broker()),
	}
	if v, ok := deps.Canvas.Current(); ok {
		m.view = &v
	}

	m.logOverlay = logoverlay.New()
	if deps.Debug {
		m.logListen = m.logOverlay.Listen(ctx)
	}

	if deps.ConfigPath != "" {
		w, err := watcher.New(watcher.DefaultConfig(deps.ConfigPath))
		if err == nil {
			if ch, err := w.Start(); err == nil {
				m.watcherHandle = w
				m.configChanges = ch
			} else {
				log.Warn(log.CatWatcher, "config watcher not started", "error", err)
				_ = w.Stop()
			}
		}
	}
	return m
}

func newBar() progress.Model {
	return progress.New(
		progress.WithGradient(styles.ProgressGradientStartHex, styles.ProgressGradientFinishHex),
		progress.WithoutPercentage(),
	)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.sessionListener.Listen(),
		m.capListener.Listen(),
		m.journalListener.Listen(),
		m.canvasListener.Listen(),
		waitForConfigChange(m.configChanges),
		m.logListen,
	}
	if strings.TrimSpace(m.deps.Config.Server.Instance) != "" && m.deps.Loader != nil {
		cmds = append(cmds, m.loadInstanceCmd())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help = m.help.SetSize(msg.Width, msg.Height)
		m.logOverlay.SetSize(msg.Width, msg.Height)
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.logOverlay.Visible() || m.showHelp {
			return m, nil
		}
		return m.handleMouse(msg)

	case log.LogEvent:
		var cmd tea.Cmd
		m.logOverlay, cmd = m.logOverlay.Update(msg)
		return m, cmd

	case logoverlay.CloseMsg:
		m.logOverlay.Hide()
		return m, nil

	case pubsub.Event[session.StateChange]:
		cmd := m.handleStateChange(msg.Payload)
		m.refreshJournal()
		return m, tea.Batch(cmd, m.sessionListener.Listen())

	case pubsub.Event[capability.Capability]:
		log.Debug(log.CatUI, "capability unlocked", "capability", msg.Payload)
		return m, m.capListener.Listen()

	case pubsub.Event[journal.Entry]:
		m.refreshJournal()
		return m, m.journalListener.Listen()

	case pubsub.Event[artifact.View]:
		v := msg.Payload
		m.view = &v
		return m, m.canvasListener.Listen()

	case launchedMsg:
		if msg.err == nil {
			log.Info(log.CatUI, "launched", "mode", msg.mode, "id", msg.id.Short())
			return m, nil
		}
		if errors.Is(msg.err, session.ErrSessionActive) {
			return m.toast(firstLine(msg.err), toaster.StyleWarn)
		}
		return m.toast("Cannot start: "+firstLine(msg.err), toaster.StyleError)

	case instanceLoadedMsg:
		if msg.err != nil {
			return m.toast("Instance not loaded", toaster.StyleError)
		}
		return m.toast(msg.message, toaster.StyleSuccess)

	case artifactLoadedMsg:
		switch {
		case msg.err == nil, isCanceled(msg.err):
			return m, nil
		case errors.Is(msg.err, capability.ErrLocked):
			return m.toast(fmt.Sprintf("%s is not available yet", msg.kind), toaster.StyleWarn)
		default:
			return m.toast(fmt.Sprintf("Could not load %s", msg.kind), toaster.StyleError)
		}

	case savedMsg:
		if msg.err != nil {
			return m.toast("Save failed: "+msg.err.Error(), toaster.StyleError)
		}
		return m.toast("Saved "+msg.path, toaster.StyleSuccess)

	case configChangedMsg:
		return m, tea.Batch(reloadConfigCmd(m.deps.ConfigPath), waitForConfigChange(m.configChanges))

	case configReloadedMsg:
		if msg.err != nil {
			log.Warn(log.CatConfig, "config reload failed", "error", msg.err)
			return m.toast("Config not reloaded: "+firstLine(msg.err), toaster.StyleWarn)
		}
		m.applyConfig(msg.cfg)
		return m, nil

	case toaster.DismissMsg:
		m.toaster = m.toaster.Update(msg)
		return m, nil
	}

	if m.form.active {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Component.ForceQuit) {
		return m, tea.Quit
	}
	if m.deps.Debug && key.Matches(msg, keys.Component.DebugLog) {
		m.logOverlay.Toggle()
		return m, nil
	}
	if m.logOverlay.Visible() {
		var cmd tea.Cmd
		m.logOverlay, cmd = m.logOverlay.Update(msg)
		return m, cmd
	}
	if m.showHelp {
		if key.Matches(msg, keys.Component.Close, keys.Action.Help, keys.Action.Quit) {
			m.showHelp = false
		}
		return m, nil
	}

	if m.form.active {
		switch {
		case key.Matches(msg, keys.Form.Blur, keys.Form.Submit):
			m.form = m.form.Blur()
			return m, nil
		case key.Matches(msg, keys.Form.NextField):
			var cmd tea.Cmd
			m.form, cmd = m.form.Next()
			return m, cmd
		case key.Matches(msg, keys.Form.PrevField):
			var cmd tea.Cmd
			m.form, cmd = m.form.Prev()
			return m, cmd
		}
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Action.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Action.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, keys.Action.Edit):
		var cmd tea.Cmd
		m.form, cmd = m.form.Focus(m.form.focused)
		return m, cmd
	case key.Matches(msg, keys.Action.ScrollUp):
		m.journal.ScrollUp(1)
		return m, nil
	case key.Matches(msg, keys.Action.ScrollDown):
		m.journal.ScrollDown(1)
		return m, nil
	}
	for _, b := range buttons {
		if key.Matches(msg, b.binding) {
			return m.press(b.id)
		}
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	for _, b := range buttons {
		if zone.Get(b.zoneID()).InBounds(msg) {
			return m.press(b.id)
		}
	}
	for i := range fieldCount {
		if zone.Get(fieldZoneID(i)).InBounds(msg) {
			var cmd tea.Cmd
			m.form, cmd = m.form.Focus(i)
			return m, cmd
		}
	}
	return m, nil
}

// press performs the action behind a button. Disabled actions explain
// themselves with a toast instead of reaching the backend.
func (m Model) press(id buttonID) (tea.Model, tea.Cmd) {
	if ok, reason := m.enabled(id); !ok {
		return m.toast(reason, toaster.StyleWarn)
	}
	switch id {
	case buttonLoad:
		return m, m.loadInstanceCmd()
	case buttonRun:
		return m, m.launchCmd(session.ModeRun)
	case buttonRunSeeded:
		return m, m.launchCmd(session.ModeSeeded)
	case buttonBatch:
		return m, m.launchCmd(session.ModeBatch)
	case buttonCancel:
		m.deps.Manager.Cancel(session.KindRun)
		m.deps.Manager.Cancel(session.KindBatch)
		return m, nil
	case buttonGraph:
		return m, m.loadArtifactCmd(artifact.KindGraph)
	case buttonBestRoute:
		return m, m.loadArtifactCmd(artifact.KindBestRoute)
	case buttonBoxplot:
		return m, m.loadArtifactCmd(artifact.KindIterationsBoxplot)
	case buttonFitness:
		return m, m.loadArtifactCmd(artifact.KindFitnessEvolution)
	case buttonAggregate:
		return m, m.loadAggregateCmd(m.deps.Manager.Batch().ArtifactRef())
	case buttonSave:
		return m, saveCmd(*m.view, m.deps.Config.Artifacts.SaveDir)
	}
	return m, nil
}

// enabled reports whether a button can be pressed now and, if not, why.
func (m Model) enabled(id buttonID) (bool, string) {
	ctl := m.deps.Controller
	switch id {
	case buttonLoad:
		if m.deps.Loader == nil {
			return false, "No backend configured"
		}
	case buttonRun, buttonRunSeeded, buttonBatch:
		if !ctl.Unlocked(capability.Run) {
			return false, "Load an instance first"
		}
	case buttonCancel:
		if !m.sessionActive(session.KindRun) && !m.sessionActive(session.KindBatch) {
			return false, "Nothing to cancel"
		}
	case buttonGraph:
		if !ctl.Unlocked(capability.ViewGraph) {
			return false, "Load an instance first"
		}
	case buttonBestRoute:
		if !ctl.Unlocked(capability.ViewBestRoute) {
			return false, "Complete a run first"
		}
	case buttonBoxplot, buttonFitness:
		if !ctl.Unlocked(capability.ViewStatistics) {
			return false, "Complete a run or batch first"
		}
	case buttonAggregate:
		b := m.deps.Manager.Batch()
		if b == nil || b.ArtifactRef() == "" {
			return false, "Complete a batch first"
		}
	case buttonSave:
		if m.view == nil {
			return false, "Nothing to save"
		}
	}
	return true, ""
}

func (m Model) sessionActive(k session.Kind) bool {
	switch k {
	case session.KindRun:
		s := m.deps.Manager.Run()
		return s != nil && s.State().IsActive()
	case session.KindBatch:
		s := m.deps.Manager.Batch()
		return s != nil && s.State().IsActive()
	}
	return false
}

func (m *Model) handleStateChange(ch session.StateChange) tea.Cmd {
	log.Debug(log.CatUI, "state change", "kind", ch.Kind, "to", ch.To)
	switch ch.To {
	case session.Completed:
		var cmd tea.Cmd
		m.toaster, cmd = m.toaster.Show(capitalize(string(ch.Kind))+" completed", toaster.StyleSuccess, toaster.DefaultDuration)
		if ch.Kind != session.KindBatch {
			return cmd
		}
		// Show the aggregate of the batch that just finished.
		if b := m.deps.Manager.Batch(); b != nil && b.ID() == ch.SessionID && b.ArtifactRef() != "" {
			return tea.Batch(cmd, m.loadAggregateCmd(b.ArtifactRef()))
		}
		return cmd
	case session.Failed:
		if isCanceled(ch.Err) {
			return nil
		}
		var cmd tea.Cmd
		m.toaster, cmd = m.toaster.Show(capitalize(string(ch.Kind))+" failed: "+firstLine(ch.Err), toaster.StyleError, toaster.DefaultDuration)
		return cmd
	}
	return nil
}

func (m *Model) applyConfig(cfg config.Config) {
	log.Info(log.CatConfig, "config reloaded", "path", m.deps.ConfigPath)
	m.deps.Config.Defaults = cfg.Defaults
	m.deps.Config.UI = cfg.UI
	m.deps.Config.Artifacts.SaveDir = cfg.Artifacts.SaveDir
	m.form.setDefaults(cfg.Defaults)
	m.help = help.New(cfg.UI.MarkdownStyle).SetSize(m.width, m.height)
	m.refreshJournal()
}

func (m Model) toast(text string, style toaster.Style) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.toaster, cmd = m.toaster.Show(text, style, toaster.DefaultDuration)
	return m, cmd
}

// Close releases resources held by the application.
func (m *Model) Close() error {
	m.cancel()
	if m.watcherHandle != nil {
		return m.watcherHandle.Stop()
	}
	return nil
}

func firstLine(err error) string {
	if err == nil {
		return ""
	}
	s, _, _ := strings.Cut(err.Error(), "\n")
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
