// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// FormKeyMap binds keys while a form field has focus.
type FormKeyMap struct {
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding
	Blur      key.Binding
}

// ActionKeyMap binds keys while the action bar has focus.
type ActionKeyMap struct {
	Edit key.Binding

	// Session control
	LoadInstance key.Binding
	Run          key.Binding
	RunSeeded    key.Binding
	RunBatch     key.Binding
	Cancel       key.Binding

	// Artifacts
	ViewGraph     key.Binding
	ViewBestRoute key.Binding
	ViewBoxplot   key.Binding
	ViewFitness   key.Binding
	ViewAggregate key.Binding
	Save          key.Binding

	// Journal
	ScrollUp   key.Binding
	ScrollDown key.Binding

	// General
	Help key.Binding
	Quit key.Binding
}

// ComponentKeyMap holds bindings shared by every focus state.
type ComponentKeyMap struct {
	Close    key.Binding
	ForceQuit key.Binding
	DebugLog key.Binding
}

// Form is the active form keymap.
var Form = FormKeyMap{
	NextField: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab/↓", "next field"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab/↑", "previous field"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "done editing"),
	),
	Blur: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "done editing"),
	),
}

// Action is the active action bar keymap.
var Action = ActionKeyMap{
	Edit: key.NewBinding(
		key.WithKeys("e", "tab"),
		key.WithHelp("e/tab", "edit parameters"),
	),
	LoadInstance: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "load instance"),
	),
	Run: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "run"),
	),
	RunSeeded: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "run from seed"),
	),
	RunBatch: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "run batch"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "cancel runs"),
	),
	ViewGraph: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "graph"),
	),
	ViewBestRoute: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "best route"),
	),
	ViewBoxplot: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "iterations boxplot"),
	),
	ViewFitness: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "fitness evolution"),
	),
	ViewAggregate: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "batch boxplot"),
	),
	Save: key.NewBinding(
		key.WithKeys("w"),
		key.WithHelp("w", "save view"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("k", "up", "pgup"),
		key.WithHelp("k/↑", "scroll journal up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("j", "down", "pgdown"),
		key.WithHelp("j/↓", "scroll journal down"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
}

// Component holds bindings active everywhere.
var Component = ComponentKeyMap{
	Close: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "close"),
	),
	ForceQuit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	DebugLog: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "debug log"),
	),
}

// ShortHelp returns keybindings for the footer.
func (k ActionKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Run, k.RunBatch, k.Cancel, k.Help, k.Quit}
}

// FullHelp returns keybindings for the help overlay, grouped by section.
func (k ActionKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.LoadInstance, k.Run, k.RunSeeded, k.RunBatch, k.Cancel},                         // Sessions
		{k.ViewGraph, k.ViewBestRoute, k.ViewBoxplot, k.ViewFitness, k.ViewAggregate, k.Save}, // Artifacts
		{k.Edit, k.ScrollUp, k.ScrollDown, k.Help, k.Quit},                                 // General
	}
}

// ShortHelp returns keybindings for the footer while editing.
func (k FormKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextField, k.PrevField, k.Blur}
}
