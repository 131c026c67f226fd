// Package render draws trajectories and sweep summaries for the CLI.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ccff"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00ff88"))
)

// Header renders a section title.
func Header(title string) string {
	return headerStyle.Render(title)
}

// Field renders a "label: value" line.
func Field(label string, value any) string {
	return fmt.Sprintf("%s %v", labelStyle.Render(label+":"), value)
}

// Status renders a pass/fail count pair.
func Status(ok, failed int) string {
	s := okStyle.Render(fmt.Sprintf("%d ok", ok))
	if failed > 0 {
		s += " " + failStyle.Render(fmt.Sprintf("%d failed", failed))
	}
	return s
}

// Trajectory plots each species column of a trajectory as its own graph,
// capped at maxPlots to keep terminal output readable.
func Trajectory(species []string, rows [][]float64, width, height, maxPlots int) string {
	if len(rows) == 0 {
		return labelStyle.Render("(empty trajectory)")
	}

	n := len(rows[0])
	if maxPlots > 0 && n > maxPlots {
		n = maxPlots
	}

	var b strings.Builder
	for col := 0; col < n; col++ {
		data := make([]float64, len(rows))
		for i := range rows {
			data[i] = rows[i][col]
		}

		caption := fmt.Sprintf("x%d", col)
		if col < len(species) {
			caption = species[col]
		}

		b.WriteString(headerStyle.Render(caption))
		b.WriteByte('\n')
		b.WriteString(asciigraph.Plot(data,
			asciigraph.Height(height),
			asciigraph.Width(width),
		))
		b.WriteString("\n\n")
	}
	if n < len(rows[0]) {
		fmt.Fprintf(&b, "%s\n", labelStyle.Render(
			fmt.Sprintf("(%d more species not shown)", len(rows[0])-n)))
	}
	return b.String()
}

// Sparkline renders one species column as a single-line chart, for compact
// per-sample summaries.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width < 1 {
		return strings.Repeat("─", max(width, 1))
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}

	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / span
		idx := int(norm * float64(len(chars)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(chars) {
			idx = len(chars) - 1
		}
		b.WriteRune(chars[idx])
	}
	return b.String()
}
