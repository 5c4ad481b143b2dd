package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// LayerFg colors map layers. Unlike ThemeFg it keeps low-color terminals
// distinguishable by falling back to the nearest basic ANSI color.
func LayerFg(hex string) lipgloss.TerminalColor {
	if hex == "" {
		return lipgloss.NoColor{}
	}
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(nearestANSI(hex))
	}
	return lipgloss.Color(hex)
}

// Theme bundles the styles the model renders with.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary lipgloss.AdaptiveColor
	Subtext lipgloss.AdaptiveColor
	Border  lipgloss.AdaptiveColor
	Muted   lipgloss.AdaptiveColor

	Base      lipgloss.Style
	Header    lipgloss.Style
	Panel     lipgloss.Style
	Key       lipgloss.Style
	KeyLabel  lipgloss.Style
	MutedText lipgloss.Style
	InputOK   lipgloss.Style
	InputBad  lipgloss.Style
	Focused   lipgloss.Style
	Cursor    lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,
		Primary:  ColorPrimary,
		Subtext:  ColorSubtext,
		Border:   ColorBorder,
		Muted:    ColorMuted,
	}

	t.Base = r.NewStyle().Foreground(ColorText)
	t.Header = r.NewStyle().Bold(true).Foreground(ColorText).Background(ColorBgHighlight).Padding(0, 1)
	t.Panel = r.NewStyle().
		Border(lipgloss.RoundedBorder(), false, false, false, true).
		BorderForeground(ColorBorder).
		PaddingLeft(1)
	t.Key = r.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.KeyLabel = r.NewStyle().Foreground(ColorSubtext)
	t.MutedText = r.NewStyle().Foreground(ColorMuted)
	t.InputOK = r.NewStyle().Foreground(ColorSuccess)
	t.InputBad = r.NewStyle().Foreground(ColorDanger)
	t.Focused = r.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Cursor = r.NewStyle().Reverse(true)
	return t
}

// nearestANSI maps a hex color onto the eight basic ANSI colors.
func nearestANSI(hex string) uint {
	c, ok := parseHex(hex)
	if !ok {
		return 7
	}
	var bits uint
	if c[0] >= 0x80 {
		bits |= 1
	}
	if c[1] >= 0x80 {
		bits |= 2
	}
	if c[2] >= 0x80 {
		bits |= 4
	}
	return bits
}

func parseHex(hex string) ([3]uint8, bool) {
	var out [3]uint8
	if len(hex) == 0 || hex[0] != '#' {
		return out, false
	}
	h := hex[1:]
	switch len(h) {
	case 3:
		for i := 0; i < 3; i++ {
			v, ok := hexNibble(h[i])
			if !ok {
				return out, false
			}
			out[i] = v * 17
		}
	case 6, 8:
		for i := 0; i < 3; i++ {
			hi, ok1 := hexNibble(h[2*i])
			lo, ok2 := hexNibble(h[2*i+1])
			if !ok1 || !ok2 {
				return out, false
			}
			out[i] = hi<<4 | lo
		}
	default:
		return out, false
	}
	return out, true
}

func hexNibble(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
