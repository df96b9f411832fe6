package calendar

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var userColors = []lipgloss.Color{
	"#0ea5e9", "#8b5cf6", "#10b981", "#f59e0b", "#ec4899",
	"#06b6d4", "#84cc16", "#ef4444", "#6366f1", "#14b8a6",
}

const maxNameWidth = 20

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	emptyStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
)

// ColumnsPerHour scales a zoom level to terminal cells.
func ColumnsPerHour(level ZoomLevel) int {
	return max(level.PxPerHour/12, 1)
}

// Render draws rows as a terminal timeline for w at the view's zoom.
func Render(rows []Row, w Window, view ViewState, startHour int) string {
	level := view.Level()
	width := 24 * ColumnsPerHour(level)

	var b strings.Builder
	b.WriteString(headerStyle.Render(w.Label()))
	b.WriteString(dimStyle.Render("  [zoom " + level.Label() + "]"))
	b.WriteByte('\n')

	if len(rows) == 0 {
		b.WriteString(emptyStyle.Render("No one has used the shared account this work day yet."))
		b.WriteByte('\n')
		return b.String()
	}

	nameWidth := 0
	for _, r := range rows {
		nameWidth = max(nameWidth, lipgloss.Width(truncate(r.Identity, maxNameWidth)))
	}
	nameCol := lipgloss.NewStyle().Width(nameWidth + 2)

	b.WriteString(nameCol.Render(""))
	b.WriteString(dimStyle.Render(axis(Ticks(level, startHour), width)))
	b.WriteByte('\n')

	for i, r := range rows {
		color := userColors[i%len(userColors)]
		b.WriteString(nameCol.Render(truncate(r.Identity, maxNameWidth)))
		b.WriteString(track(r.Blocks, width, lipgloss.NewStyle().Foreground(color)))
		b.WriteString("  ")
		b.WriteString(FormatTotal(r.Total))
		b.WriteByte('\n')
	}
	return b.String()
}

func axis(ticks []Tick, width int) string {
	cells := []rune(strings.Repeat(" ", width+12))
	next := 0
	for _, t := range ticks {
		if t.Label == "" {
			continue
		}
		col := int(math.Round(t.Offset * float64(width)))
		if col < next {
			continue
		}
		icon := "☽"
		if t.Day {
			icon = "☀"
		}
		label := []rune(icon + t.Label)
		if col+len(label) > len(cells) {
			break
		}
		copy(cells[col:], label)
		next = col + len(label) + 1
	}
	return strings.TrimRight(string(cells), " ")
}

func track(blocks []Block, width int, style lipgloss.Style) string {
	filled := make([]bool, width)
	for _, bl := range blocks {
		from := int(math.Floor(bl.Offset * float64(width)))
		to := int(math.Ceil((bl.Offset + bl.Width) * float64(width)))
		from = min(max(from, 0), width-1)
		to = min(max(to, from+1), width)
		for c := from; c < to; c++ {
			filled[c] = true
		}
	}

	var b strings.Builder
	for c := 0; c < width; {
		run := c
		for run < width && filled[run] == filled[c] {
			run++
		}
		if filled[c] {
			b.WriteString(style.Render(strings.Repeat("█", run-c)))
		} else {
			b.WriteString(dimStyle.Render(strings.Repeat("·", run-c)))
		}
		c = run
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
