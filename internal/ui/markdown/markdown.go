// Package markdown renders markdown for the TUI with glamour.
package markdown

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// noMarginStyle removes document margins so rendered text lines up with
// the panel it is placed in.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// Styles accepted by New. "auto" detects the terminal background.
const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
)

// Renderer wraps a glamour renderer configured for one width.
type Renderer struct {
	renderer *glamour.TermRenderer
	style    string
	width    int
}

// New creates a renderer that wraps at width using the named style.
func New(style string, width int) (*Renderer, error) {
	var base glamour.TermRendererOption
	switch style {
	case "", StyleAuto:
		style = StyleAuto
		base = glamour.WithAutoStyle()
	case StyleDark, StyleLight, StyleNoTTY:
		base = glamour.WithStandardStyle(style)
	default:
		return nil, fmt.Errorf("unknown markdown style %q", style)
	}
	r, err := glamour.NewTermRenderer(
		base,
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Renderer{renderer: r, style: style, width: width}, nil
}

// Width returns the configured word wrap width.
func (r *Renderer) Width() int {
	return r.width
}

// Style returns the configured style name.
func (r *Renderer) Style() string {
	return r.style
}

// Render transforms markdown to styled terminal output.
func (r *Renderer) Render(md string) (string, error) {
	return r.renderer.Render(md)
}
