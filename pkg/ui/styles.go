package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/routelens/pkg/controller"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE - Adaptive colors for light and dark terminals
// ══════════════════════════════════════════════════════════════════════════════

var (
	ColorBg          = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}
	ColorBgHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}
	ColorText        = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted       = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorBorder      = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"}

	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}

	ColorSuccessBg = lipgloss.AdaptiveColor{Light: "#D4EDDA", Dark: "#1A3D2A"}
	ColorDangerBg  = lipgloss.AdaptiveColor{Light: "#F8D7DA", Dark: "#3D1A1A"}
)

// RoadColor is the road network drawn under every layer.
const RoadColor = "#44475A"

// toneColor maps a panel notice tone onto the palette.
func toneColor(t controller.Tone) lipgloss.AdaptiveColor {
	switch t {
	case controller.ToneSuccess:
		return ColorSuccess
	case controller.ToneWarning:
		return ColorWarning
	case controller.ToneError:
		return ColorDanger
	case controller.ToneLoading:
		return ColorInfo
	default:
		return ColorSubtext
	}
}

// toneIcon prefixes notices in the side panel.
func toneIcon(t controller.Tone) string {
	switch t {
	case controller.ToneSuccess:
		return "✓"
	case controller.ToneWarning:
		return "!"
	case controller.ToneError:
		return "✗"
	case controller.ToneLoading:
		return "…"
	default:
		return "ℹ"
	}
}
