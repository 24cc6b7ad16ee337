package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/antrail/internal/artifact"
	"github.com/zjrosen/antrail/internal/config"
	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/params"
	"github.com/zjrosen/antrail/internal/session"
)

type launchedMsg struct {
	mode session.Mode
	id   session.ID
	err  error
}

type instanceLoadedMsg struct {
	message string
	err     error
}

type artifactLoadedMsg struct {
	kind artifact.Kind
	err  error
}

type savedMsg struct {
	path string
	err  error
}

type configChangedMsg struct{}

type configReloadedMsg struct {
	cfg config.Config
	err error
}

func (m Model) launchCmd(mode session.Mode) tea.Cmd {
	raw := m.form.Raw(mode == session.ModeSeeded)
	expected := m.form.ExpectedRuns()
	deps := m.deps
	ctx := m.ctx
	return func() tea.Msg {
		if mode == session.ModeBatch {
			deps.Manager.SetExpectedRuns(expected)
		}
		s, err := deps.Manager.Launch(ctx, mode, raw)
		if err != nil {
			return launchedMsg{mode: mode, err: err}
		}
		if deps.Config.UI.RememberInput && deps.ConfigPath != "" {
			remember(deps, raw, expected)
		}
		return launchedMsg{mode: mode, id: s.ID()}
	}
}

// remember saves the launched parameters as the new defaults.
func remember(deps Deps, raw params.RawInput, expected int) {
	ps, err := params.Validate(raw)
	if err != nil {
		return
	}
	d := deps.Config.Defaults.FromParams(ps)
	d.ExpectedRuns = expected
	if err := config.SaveDefaults(deps.ConfigPath, d); err != nil {
		log.Warn(log.CatConfig, "saving parameter defaults", "path", deps.ConfigPath, "error", err)
	}
}

func (m Model) loadInstanceCmd() tea.Cmd {
	name := m.form.Value(FieldInstance)
	loader := m.deps.Loader
	ctx := m.ctx
	return func() tea.Msg {
		msg, err := loader.Load(ctx, name)
		return instanceLoadedMsg{message: msg, err: err}
	}
}

func (m Model) loadArtifactCmd(kind artifact.Kind) tea.Cmd {
	deps := m.deps
	ctx := m.ctx
	return func() tea.Msg {
		_, err := deps.Canvas.Load(ctx, deps.Requester, kind)
		return artifactLoadedMsg{kind: kind, err: err}
	}
}

func (m Model) loadAggregateCmd(ref string) tea.Cmd {
	deps := m.deps
	ctx := m.ctx
	return func() tea.Msg {
		_, err := deps.Canvas.LoadAggregate(ctx, deps.Requester, ref)
		return artifactLoadedMsg{kind: artifact.KindAggregate, err: err}
	}
}

func saveCmd(v artifact.View, dir string) tea.Cmd {
	return func() tea.Msg {
		path, err := v.Save(dir)
		return savedMsg{path: path, err: err}
	}
}

func waitForConfigChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return configChangedMsg{}
	}
}

func reloadConfigCmd(path string) tea.Cmd {
	return func() tea.Msg {
		cfg, err := config.Load(path)
		if err == nil {
			err = config.Validate(cfg)
		}
		return configReloadedMsg{cfg: cfg, err: err}
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
