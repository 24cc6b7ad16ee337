// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Text hierarchy
	TextPrimaryColor   = lipgloss.AdaptiveColor{Light: "#2D3436", Dark: "#CCCCCC"}
	TextSecondaryColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BBBBBB"}
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"} // Hints, help text, footers

	// Borders
	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	// Status
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	StatusInfoColor    = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	// Session state colors
	StateIdleColor      = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#777777"}
	StateStartingColor  = lipgloss.AdaptiveColor{Light: "#FF9F43", Dark: "#FF9F43"}
	StateStreamingColor = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	// Button colors
	ButtonTextColor           = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}
	ButtonPrimaryBgColor      = lipgloss.AdaptiveColor{Light: "#1A5276", Dark: "#1A5276"}
	ButtonSecondaryBgColor    = lipgloss.AdaptiveColor{Light: "#2D3436", Dark: "#2D3436"}
	ButtonDangerBgColor       = lipgloss.AdaptiveColor{Light: "#922B21", Dark: "#922B21"}
	ButtonDisabledBgColor     = lipgloss.AdaptiveColor{Light: "#2D2D2D", Dark: "#2D2D2D"}
	ButtonDisabledTextColor   = lipgloss.AdaptiveColor{Light: "#777777", Dark: "#777777"}
	FormLabelColor            = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#8C8C8C"}
	FormFocusedLabelColor     = lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}
	OverlayBorderColor        = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#8C8C8C"}
	OverlayTitleColor         = lipgloss.AdaptiveColor{Light: "#2D3436", Dark: "#C9C9C9"}
	ToastBorderSuccessColor   = StatusSuccessColor
	ToastBorderErrorColor     = StatusErrorColor
	ToastBorderInfoColor      = StatusInfoColor
	ToastBorderWarnColor      = StatusWarningColor
	ProgressGradientStartHex  = "#1A5276"
	ProgressGradientFinishHex = "#73F59F"

	baseButtonStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)

	PrimaryButtonStyle = baseButtonStyle.
				Foreground(ButtonTextColor).
				Background(ButtonPrimaryBgColor)

	SecondaryButtonStyle = baseButtonStyle.
				Foreground(ButtonTextColor).
				Background(ButtonSecondaryBgColor)

	DangerButtonStyle = baseButtonStyle.
				Foreground(ButtonTextColor).
				Background(ButtonDangerBgColor)

	DisabledButtonStyle = baseButtonStyle.
				Bold(false).
				Foreground(ButtonDisabledTextColor).
				Background(ButtonDisabledBgColor)

	LabelStyle        = lipgloss.NewStyle().Foreground(FormLabelColor)
	FocusedLabelStyle = lipgloss.NewStyle().Foreground(FormFocusedLabelColor).Bold(true)
	MutedStyle        = lipgloss.NewStyle().Foreground(TextMutedColor)
	FailureStyle      = lipgloss.NewStyle().Foreground(StatusErrorColor)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor).
			Padding(0, 1)
)

// StateColor returns the color used for a session state name.
func StateColor(state string) lipgloss.TerminalColor {
	switch state {
	case "starting":
		return StateStartingColor
	case "streaming":
		return StateStreamingColor
	case "completed":
		return StatusSuccessColor
	case "failed":
		return StatusErrorColor
	default:
		return StateIdleColor
	}
}

// StateBadge renders a state name in its color.
func StateBadge(state string) string {
	return lipgloss.NewStyle().Foreground(StateColor(state)).Bold(true).Render(state)
}
