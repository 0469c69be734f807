package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/inotool/inosize/internal/report"
	"github.com/inotool/inosize/internal/size"
)

// summaryColumns are the table headings, in display order.
var summaryColumns = []string{"Sketch", "Flash", "ΔFlash", "RAM", "ΔRAM", "Status"}

// RenderSummary renders one board's compile results as an aligned table.
// Deltas are colored by direction: growth stands out, shrinkage reads as
// good news, N/A stays muted.
func RenderSummary(rep *report.Report) string {
	rows := make([][]string, 0, len(rep.Sketches))
	for _, entry := range rep.Sketches {
		status := IconPass
		if !entry.CompileSuccess {
			status = IconFail
		}
		rows = append(rows, []string{
			entry.Sketch,
			entry.Flash.String(),
			entry.FlashDelta.String(),
			entry.RAM.String(),
			entry.RAMDelta.String(),
			status,
		})
	}

	widths := make([]int, len(summaryColumns))
	for i, heading := range summaryColumns {
		widths[i] = len([]rune(heading))
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := len([]rune(cell)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Memory usage for "+rep.FQBN) + "\n")

	headings := make([]string, len(summaryColumns))
	for i, heading := range summaryColumns {
		headings[i] = pad(heading, widths[i])
	}
	b.WriteString(RenderAccent(strings.Join(headings, "  ")) + "\n")

	for r, row := range rows {
		entry := rep.Sketches[r]
		cells := []string{
			pad(row[0], widths[0]),
			pad(row[1], widths[1]),
			deltaStyle(entry.FlashDelta).Render(pad(row[2], widths[2])),
			pad(row[3], widths[3]),
			deltaStyle(entry.RAMDelta).Render(pad(row[4], widths[4])),
		}
		if entry.CompileSuccess {
			cells = append(cells, RenderPass(row[5]))
		} else {
			cells = append(cells, RenderFail(row[5]))
		}
		b.WriteString(strings.Join(cells, "  ") + "\n")
	}
	if rep.CommitHash != "" {
		b.WriteString(RenderMuted("commit "+rep.CommitHash) + "\n")
	}
	return b.String()
}

// deltaStyle picks the style for a size delta cell.
func deltaStyle(delta size.Metric) lipgloss.Style {
	switch {
	case !delta.Known():
		return MutedStyle
	case delta.Value() > 0:
		return WarnStyle
	case delta.Value() < 0:
		return PassStyle
	default:
		return MutedStyle
	}
}

// pad right-pads s with spaces to the given rune width.
func pad(s string, width int) string {
	if n := width - len([]rune(s)); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
