package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SummaryRow is one label/value line of the final summary.
type SummaryRow struct {
	Label string
	Value string
}

// RenderSummary draws rows as a two-column table.
func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, len(row.Label))
		valueWidth = max(valueWidth, len(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}
	for _, row := range rows {
		line := fmt.Sprintf("%s | %s",
			labelStyle.Render(padRight(row.Label, labelWidth)),
			valueStyle.Render(padRight(row.Value, valueWidth)))
		lines = append(lines, line)
	}
	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// ResultRow is one codec's outcome for the results table.
type ResultRow struct {
	Codec   string
	Size    int64
	Ratio   float64
	Elapsed string
	Engine  string
	Err     string
}

// RenderResults draws per-codec results. Rows that failed show the error
// instead of size and ratio.
func RenderResults(image string, rows []ResultRow) string {
	lines := []string{titleStyle.Render(image)}
	for _, r := range rows {
		codec := padRight(r.Codec, 10)
		if r.Err != "" {
			lines = append(lines, "  "+labelStyle.Render(codec)+warnStyle.Render("failed: "+r.Err))
			continue
		}
		style := valueStyle
		if r.Ratio >= 1 {
			style = warnStyle
		}
		line := fmt.Sprintf("  %s%s %s %s",
			labelStyle.Render(codec),
			style.Render(padRight(FormatBytes(r.Size), 10)),
			style.Render(fmt.Sprintf("%6.1f%%", r.Ratio*100)),
			dimStyle.Render(r.Elapsed+"  "+r.Engine))
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%s%.1f MB", sign, float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%s%.1f KB", sign, float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%s%d B", sign, n)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
)
