package app

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/antrail/internal/config"
	"github.com/zjrosen/antrail/internal/params"
	"github.com/zjrosen/antrail/internal/ui/styles"
)

// Field indexes the parameter form.
type Field int

const (
	FieldInstance Field = iota
	FieldAlpha
	FieldBeta
	FieldEvaporation
	FieldQ
	FieldNumAnts
	FieldNumIterations
	FieldExpectedRuns
	FieldSeed
	fieldCount
)

var fieldLabels = [fieldCount]string{
	FieldInstance:      "Instance",
	FieldAlpha:         "Alpha",
	FieldBeta:          "Beta",
	FieldEvaporation:   "Evaporation",
	FieldQ:             "Q",
	FieldNumAnts:       "Ants",
	FieldNumIterations: "Iterations",
	FieldExpectedRuns:  "Batch runs",
	FieldSeed:          "Seed",
}

const labelWidth = 12

// form holds one text input per parameter. Values stay raw text until a
// launch validates them.
type form struct {
	inputs  [fieldCount]textinput.Model
	focused Field
	active  bool
}

func newForm(instance string, d config.ParamDefaults) form {
	var f form
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 64
		f.inputs[i] = in
	}
	f.inputs[FieldSeed].CharLimit = 4096
	f.inputs[FieldSeed].Placeholder = "[0, 1, 2, ...]"
	f.inputs[FieldInstance].Placeholder = "berlin52"
	f.inputs[FieldInstance].SetValue(instance)
	f.setDefaults(d)
	return f
}

// setDefaults replaces the parameter values. The instance is left alone.
func (f *form) setDefaults(d config.ParamDefaults) {
	raw := d.Raw(true)
	f.inputs[FieldAlpha].SetValue(raw.Alpha)
	f.inputs[FieldBeta].SetValue(raw.Beta)
	f.inputs[FieldEvaporation].SetValue(raw.Evaporation)
	f.inputs[FieldQ].SetValue(raw.Q)
	f.inputs[FieldNumAnts].SetValue(raw.NumAnts)
	f.inputs[FieldNumIterations].SetValue(raw.NumIterations)
	f.inputs[FieldExpectedRuns].SetValue(strconv.Itoa(d.ExpectedRuns))
	f.inputs[FieldSeed].SetValue(*raw.SeedSolution)
}

// Value returns the raw text of field.
func (f form) Value(field Field) string {
	return f.inputs[field].Value()
}

// SetValue replaces the raw text of field.
func (f *form) SetValue(field Field, v string) {
	f.inputs[field].SetValue(v)
}

// Raw returns the parameter fields as unvalidated input. The seed is
// included only when seeded is set.
func (f form) Raw(seeded bool) params.RawInput {
	raw := params.RawInput{
		Alpha:         strings.TrimSpace(f.Value(FieldAlpha)),
		Beta:          strings.TrimSpace(f.Value(FieldBeta)),
		Evaporation:   strings.TrimSpace(f.Value(FieldEvaporation)),
		Q:             strings.TrimSpace(f.Value(FieldQ)),
		NumAnts:       strings.TrimSpace(f.Value(FieldNumAnts)),
		NumIterations: strings.TrimSpace(f.Value(FieldNumIterations)),
	}
	if seeded {
		seed := f.Value(FieldSeed)
		raw.SeedSolution = &seed
	}
	return raw
}

// ExpectedRuns parses the batch size hint; anything unparsable is zero.
func (f form) ExpectedRuns() int {
	n, err := strconv.Atoi(strings.TrimSpace(f.Value(FieldExpectedRuns)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (f form) Focus(field Field) (form, tea.Cmd) {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	f.focused = field
	f.active = true
	return f, f.inputs[field].Focus()
}

func (f form) Blur() form {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	f.active = false
	return f
}

func (f form) Next() (form, tea.Cmd) {
	return f.Focus((f.focused + 1) % fieldCount)
}

func (f form) Prev() (form, tea.Cmd) {
	return f.Focus((f.focused + fieldCount - 1) % fieldCount)
}

func (f form) Update(msg tea.Msg) (form, tea.Cmd) {
	if !f.active {
		return f, nil
	}
	var cmd tea.Cmd
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return f, cmd
}

func (f form) View(width int) string {
	inputWidth := max(width-labelWidth-1, 4)
	rows := make([]string, 0, fieldCount)
	for i := range f.inputs {
		field := Field(i)
		label := styles.LabelStyle
		if f.active && field == f.focused {
			label = styles.FocusedLabelStyle
		}
		in := f.inputs[i]
		in.Width = inputWidth
		rows = append(rows, label.Render(styles.PadRight(fieldLabels[i], labelWidth))+" "+in.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
