package styles

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rivo/uniseg"
)

const ellipsis = "..."

// Truncate shortens s to maxWidth cells, ending in an ellipsis when it had
// to cut. Styled strings are cut with their escape sequences intact.
func Truncate(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	if ansi.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= len(ellipsis) {
		return strings.Repeat(".", maxWidth)
	}
	if strings.Contains(s, "\x1b") {
		return ansi.Truncate(s, maxWidth, ellipsis)
	}

	// Plain text: cut on grapheme boundaries so emoji and combining marks
	// are never split.
	var (
		b     strings.Builder
		width int
		state = -1
		rest  = s
		limit = maxWidth - len(ellipsis)
	)
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if width+w > limit {
			break
		}
		b.WriteString(cluster)
		width += w
	}
	return b.String() + ellipsis
}

// PadRight pads plain text s with spaces to width cells.
func PadRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// Wrap word-wraps s at width cells. Words longer than width are left intact.
func Wrap(s string, width int) string {
	if width < 1 {
		return s
	}
	return wordwrap.String(s, width)
}
