package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"shapelab/internal/metrics"
	"shapelab/internal/trainer"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#101F38", Dark: "#8BC34A"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	colorBorder  = lipgloss.AdaptiveColor{Light: "#dce0e5", Dark: "#2a3850"}
	colorInfo    = lipgloss.Color("#2196F3")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	labelStyle = lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle = lipgloss.NewStyle().Bold(true)
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorInfo)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// renderSummary formats a response for the terminal.
func renderSummary(resp *trainer.Response) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s · %s · %s", resp.Dataset, resp.Task, resp.Model)))
	b.WriteString("\n")
	b.WriteString(field("intercept", fmt.Sprintf("%.4f", resp.Intercept)))
	b.WriteString(field("points", fmt.Sprint(resp.Points)))
	b.WriteString(field("seed", fmt.Sprint(resp.Seed)))
	b.WriteString(field("train", formatMetrics(resp.TrainMetrics)))
	b.WriteString(field("test", formatMetrics(resp.TestMetrics)))
	if len(resp.EditedFeatures) > 0 {
		b.WriteString(field("edited", strings.Join(resp.EditedFeatures, ", ")))
	}
	if len(resp.LockedFeatures) > 0 {
		b.WriteString(field("locked", strings.Join(resp.LockedFeatures, ", ")))
	}

	rows := []string{headStyle.Render(fmt.Sprintf("%-24s %-12s %6s %10s %10s", "feature", "kind", "knots", "min", "max"))}
	for _, p := range resp.Partials {
		kind := "numeric"
		if p.IsCategorical() {
			kind = "categorical"
		}
		lo, hi := 0.0, 0.0
		if len(p.EditableY) > 0 {
			lo, hi = slices.Min(p.EditableY), slices.Max(p.EditableY)
		}
		knots := fmt.Sprint(len(p.EditableX))
		if raw, ok := resp.KnotCounts[p.Key]; ok {
			knots = fmt.Sprintf("%d/%d", len(p.EditableX), raw)
		}
		rows = append(rows, fmt.Sprintf("%-24s %-12s %6s %10.4f %10.4f", truncate(p.Label, 24), kind, knots, lo, hi))
	}
	b.WriteString(boxStyle.Render(strings.Join(rows, "\n")))
	return b.String()
}

func field(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-10s", label)) + valueStyle.Render(value) + "\n"
}

func formatMetrics(m metrics.Metrics) string {
	parts := []string{fmt.Sprintf("n=%d", m.Count)}
	if m.Accuracy != nil {
		parts = append(parts, fmt.Sprintf("acc=%.4f", *m.Accuracy))
	}
	if m.RMSE != nil {
		parts = append(parts, fmt.Sprintf("rmse=%.4f", *m.RMSE))
	}
	if m.R2 != nil {
		parts = append(parts, fmt.Sprintf("r2=%.4f", *m.R2))
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
