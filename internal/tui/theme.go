package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mohaanymo/vodmirror/internal/mirror"
)

// Adaptive colors so the UI stays readable on light terminals.
var (
	fgStrong = lipgloss.AdaptiveColor{Light: "#1e1e2e", Dark: "#cdd6f4"}
	fgMuted  = lipgloss.AdaptiveColor{Light: "#8c8fa1", Dark: "#6c7086"}
	fgSoft   = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#9399b2"}
	frame    = lipgloss.AdaptiveColor{Light: "#bcc0cc", Dark: "#45475a"}
	onBadge  = lipgloss.AdaptiveColor{Light: "#eff1f5", Dark: "#11111b"}

	blue   = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}
	teal   = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#94e2d5"}
	mauve  = lipgloss.AdaptiveColor{Light: "#8839ef", Dark: "#cba6f7"}
	green  = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	yellow = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	red    = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func box(padY int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(frame).
		Padding(padY, 2)
}

var (
	headerStyle  = box(0)
	contentStyle = box(1)

	titleStyle    = fg(blue).Bold(true)
	subtitleStyle = fg(teal).Bold(true)
	labelStyle    = fg(fgMuted)
	valueStyle    = fg(fgStrong)
	dimStyle      = fg(fgMuted)
	helpStyle     = fg(fgMuted)
	keyHelpStyle  = fg(fgSoft)

	successStyle = fg(green).Bold(true)
	warningStyle = fg(yellow)
	errorStyle   = fg(red).Bold(true)
	spinnerStyle = fg(blue)

	progressActive = fg(blue)
	progressWait   = fg(frame)

	statLabelStyle = fg(fgSoft)
	statValueStyle = fg(teal).Bold(true)
)

// kindBadges labels the per-kind progress rows. Labels share one width so
// the bars line up.
var kindBadges = map[mirror.Kind]struct {
	label string
	style lipgloss.Style
}{
	mirror.KindManifest: {"MANIFEST", badge(blue)},
	mirror.KindInit:     {"INIT", badge(mauve)},
	mirror.KindMedia:    {"MEDIA", badge(teal)},
}

func badge(bg lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(onBadge).
		Background(bg).
		Width(10).
		Align(lipgloss.Center).
		Bold(true)
}

func renderBadge(k mirror.Kind) string {
	b, ok := kindBadges[k]
	if !ok {
		b = kindBadges[mirror.KindMedia]
	}
	return b.style.Render(b.label)
}

var spinner = []string{"◐", "◓", "◑", "◒"}
