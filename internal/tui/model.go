package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohaanymo/vodmirror/internal/mirror"
	"github.com/mohaanymo/vodmirror/internal/resource"

	tea "github.com/charmbracelet/bubbletea"
)

// Messages
type (
	progressMsg  mirror.ProgressUpdate
	progressDone struct{}
	tickMsg      time.Time
	DoneMsg      struct{ Result *mirror.Result }
	ErrorMsg     struct{ Err error }
)

// States
type appState int

const (
	stateStarting appState = iota
	stateCopying
	stateDone
	stateError
)

type kindProgress struct {
	kind     mirror.Kind
	total    int
	done     int
	existing int
	failed   int
	bytes    int64
}

// Model is the main TUI model.
type Model struct {
	state       appState
	width       int
	height      int
	frame       int
	asset       *resource.Asset
	destination string
	progressCh  <-chan mirror.ProgressUpdate

	kinds      []*kindProgress
	total      int
	done       int
	failed     int
	downloaded int64
	startTime  time.Time
	speed      float64
	eta        time.Duration
	result     *mirror.Result
	err        error
}

// NewModel creates a model that follows the copy of asset to destination.
func NewModel(asset *resource.Asset, destination string, progressCh <-chan mirror.ProgressUpdate) *Model {
	_, totals := mirror.Classify(asset.Resources)

	return &Model{
		asset:       asset,
		destination: destination,
		progressCh:  progressCh,
		kinds: []*kindProgress{
			{kind: mirror.KindManifest, total: totals.Manifests},
			{kind: mirror.KindInit, total: totals.Init},
			{kind: mirror.KindMedia, total: totals.Media},
		},
		total:     totals.All(),
		startTime: time.Now(),
		state:     stateStarting,
		width:     80,
		height:    24,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listenProgress(), tick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case progressMsg:
		m.handleProgress(mirror.ProgressUpdate(msg))
		m.state = stateCopying
		return m, m.listenProgress()

	case progressDone:
		return m, nil

	case tickMsg:
		m.frame++
		m.updateSpeed()
		return m, tick()

	case DoneMsg:
		m.state = stateDone
		m.result = msg.Result
		return m, tea.Quit

	case ErrorMsg:
		m.state = stateError
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) View() string {
	w := clamp(m.width-4, 60, 100)

	var b strings.Builder
	b.WriteString(m.viewHeader(w))
	b.WriteString("\n\n")
	b.WriteString(m.viewContent(w))

	return b.String()
}

func (m *Model) viewHeader(w int) string {
	title := titleStyle.Render("vodmirror")
	subtitle := dimStyle.Render(" - VOD asset mirror")

	typeLabel := labelStyle.Render("type:")
	typeValue := valueStyle.Render(m.asset.Format.String())

	urlLabel := labelStyle.Render("url:")
	urlValue := dimStyle.Render(truncate(m.asset.URL, w-30))

	destLabel := labelStyle.Render("to:")
	destValue := dimStyle.Render(truncate(m.destination, w-12))

	line1 := title + subtitle
	line2 := fmt.Sprintf("%s %s  %s %s", typeLabel, typeValue, urlLabel, urlValue)
	line3 := fmt.Sprintf("%s %s", destLabel, destValue)

	return headerStyle.Width(w).Render(line1 + "\n" + line2 + "\n" + line3)
}

func (m *Model) viewContent(w int) string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Resources"))
	b.WriteString("\n\n")

	for _, kp := range m.kinds {
		if kp.total == 0 {
			continue
		}
		b.WriteString(m.renderKind(kp))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("Progress"))
	b.WriteString("\n\n")
	b.WriteString(m.renderOverallProgress(w - 6))
	b.WriteString("\n\n")
	b.WriteString(m.renderStats())
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return contentStyle.Width(w).Render(b.String())
}

func (m *Model) renderKind(kp *kindProgress) string {
	var b strings.Builder

	b.WriteString(renderBadge(kp.kind))
	b.WriteString(" ")

	pct := ratio(kp.done, kp.total)
	b.WriteString(bar(30, pct))
	b.WriteString(" ")

	b.WriteString(statValueStyle.Render(fmt.Sprintf("%3.0f%%", pct*100)))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" (%d/%d)", kp.done, kp.total)))
	if kp.existing > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" • %d existing", kp.existing)))
	}
	if kp.failed > 0 {
		b.WriteString(" " + warningStyle.Render(fmt.Sprintf("%d failed", kp.failed)))
	}

	return b.String()
}

func (m *Model) renderOverallProgress(w int) string {
	pct := ratio(m.done, m.total)
	return bar(clamp(w-20, 20, 80), pct) + " " +
		statValueStyle.Render(fmt.Sprintf("%.1f%%", pct*100))
}

// bar draws a width-cell progress bar filled to pct (0..1).
func bar(width int, pct float64) string {
	filled := clamp(int(pct*float64(width)), 0, width)
	return progressActive.Render(strings.Repeat("━", filled)) +
		progressWait.Render(strings.Repeat("─", width-filled))
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func (m *Model) renderStats() string {
	stats := []struct {
		label string
		value string
	}{
		{"Speed", fmt.Sprintf("%.2f MB/s", m.speed/1024/1024)},
		{"Copied", formatBytes(m.downloaded)},
		{"Elapsed", formatDuration(time.Since(m.startTime))},
		{"ETA", formatDuration(m.eta)},
	}

	var parts []string
	for _, s := range stats {
		part := statLabelStyle.Render(s.label+": ") + statValueStyle.Render(s.value)
		parts = append(parts, part)
	}

	return strings.Join(parts, "  ")
}

func (m *Model) renderStatus() string {
	switch m.state {
	case stateStarting:
		return spinnerStyle.Render(spinner[m.frame%len(spinner)]) + dimStyle.Render(" listing destination...")
	case stateCopying:
		return spinnerStyle.Render(spinner[m.frame%len(spinner)]) + dimStyle.Render(" copying resources...")
	case stateDone:
		if m.result != nil && m.result.Status != mirror.StatusComplete {
			return warningStyle.Render(fmt.Sprintf("! %s (%.2f%%)", m.result.Status, m.result.Percentage))
		}
		return successStyle.Render("✓ mirror complete!")
	case stateError:
		return errorStyle.Render(fmt.Sprintf("✗ error: %v", m.err))
	}
	return ""
}

func (m *Model) renderHelp() string {
	return helpStyle.Render(
		keyHelpStyle.Render("q") + " quit  " +
			keyHelpStyle.Render("ctrl+c") + " cancel",
	)
}

func (m *Model) handleProgress(p mirror.ProgressUpdate) {
	kp := m.kinds[clamp(int(p.Kind), 0, len(m.kinds)-1)]
	switch {
	case p.Error != nil:
		kp.failed++
		m.failed++
	case p.Completed:
		kp.done++
		m.done++
		if p.Existing {
			kp.existing++
		}
	}
	kp.bytes += p.Bytes
	m.downloaded += p.Bytes
}

func (m *Model) updateSpeed() {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed > 0 {
		m.speed = float64(m.downloaded) / elapsed
	}

	remaining := m.total - m.done - m.failed
	if m.speed > 0 && remaining > 0 && m.done > 0 {
		avgSize := float64(m.downloaded) / float64(m.done)
		m.eta = time.Duration(float64(remaining) * avgSize / m.speed * float64(time.Second))
	}
}

func (m *Model) listenProgress() tea.Cmd {
	return func() tea.Msg {
		p, ok := <-m.progressCh
		if !ok {
			return progressDone{}
		}
		return progressMsg(p)
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Helpers

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func truncate(s string, max int) string {
	if len(s) <= max || max < 4 {
		return s
	}
	return s[:max-3] + "..."
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
