// Package report renders the end-of-run harvest summary.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/mjanez/ckan-ogc/internal/ckan"
)

// Render produces the per-source summary table followed by the error detail
// of every dataset that could not be created. Column padding uses display
// width so multibyte source names keep the table aligned.
func Render(results []*ckan.Result, elapsed time.Duration) string {
	header := []string{"Source", "Retrieved", "Created", "Skipped", "Conflicts", "Errors"}

	rows := [][]string{header}
	totals := ckan.Result{Source: "Total"}

	for _, r := range results {
		rows = append(rows, []string{
			r.Source,
			fmt.Sprintf("%d", r.Retrieved),
			fmt.Sprintf("%d", r.Created),
			fmt.Sprintf("%d", r.Skipped),
			fmt.Sprintf("%d", r.Conflicts),
			fmt.Sprintf("%d", len(r.Errors)),
		})

		totals.Retrieved += r.Retrieved
		totals.Created += r.Created
		totals.Skipped += r.Skipped
		totals.Conflicts += r.Conflicts
		totals.Errors = append(totals.Errors, r.Errors...)
	}

	if len(results) > 1 {
		rows = append(rows, []string{
			totals.Source,
			fmt.Sprintf("%d", totals.Retrieved),
			fmt.Sprintf("%d", totals.Created),
			fmt.Sprintf("%d", totals.Skipped),
			fmt.Sprintf("%d", totals.Conflicts),
			fmt.Sprintf("%d", len(totals.Errors)),
		})
	}

	var sb strings.Builder
	sb.WriteString(renderTable(rows))
	sb.WriteString(fmt.Sprintf("\nCompleted in %s\n", elapsed.Round(time.Millisecond)))

	if len(totals.Errors) > 0 {
		sb.WriteString("\nDatasets not created:\n")
		for _, e := range totals.Errors {
			sb.WriteString(fmt.Sprintf("  - %s (id=%s, inspire_id=%s): %s\n",
				e.Title, e.ID, e.InspireID, e.Error))
		}
	}

	return sb.String()
}

// renderTable lays out rows as a markdown table with a separator after the
// header, padded to the widest cell of each column.
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	colCount := len(rows[0])
	colWidths := make([]int, colCount)

	for _, row := range rows {
		for i := 0; i < len(row) && i < colCount; i++ {
			width := runewidth.StringWidth(row[i])
			if width > colWidths[i] {
				colWidths[i] = width
			}
		}
	}

	for i := range colWidths {
		if colWidths[i] < 3 {
			colWidths[i] = 3
		}
	}

	var sb strings.Builder
	for i, row := range rows {
		sb.WriteString("|")
		for j := 0; j < colCount; j++ {
			content := ""
			if j < len(row) {
				content = row[j]
			}

			sb.WriteString(" ")
			sb.WriteString(content)

			padding := colWidths[j] - runewidth.StringWidth(content)
			if padding > 0 {
				sb.WriteString(strings.Repeat(" ", padding))
			}
			sb.WriteString(" |")
		}
		sb.WriteString("\n")

		if i == 0 {
			sb.WriteString("|")
			for j := 0; j < colCount; j++ {
				sb.WriteString(" ")
				sb.WriteString(strings.Repeat("-", colWidths[j]))
				sb.WriteString(" |")
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
