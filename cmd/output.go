package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"shipclass/internal/models"
	"shipclass/internal/services"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func renderDistribution(w io.Writer, dist []services.LabelCount) {
	if len(dist) == 0 {
		return
	}
	table := newTable(w, "Category", "Type", "Rows")
	for _, lc := range dist {
		table.Append([]string{lc.Category, lc.Type, strconv.Itoa(lc.Count)})
	}
	table.Render()
}

func renderStats(w io.Writer, stats services.BatchStats) {
	fmt.Fprintf(w, "Rows: %d, batches: %d", stats.Rows, stats.Batches)
	if stats.FailedBatches > 0 {
		fmt.Fprint(w, color.RedString(", failed batches: %d", stats.FailedBatches))
	}
	if stats.ParseFailures > 0 {
		fmt.Fprint(w, color.YellowString(", unparsed rows: %d", stats.ParseFailures))
	}
	if stats.ErrorRows > 0 {
		fmt.Fprint(w, color.YellowString(", error rows: %d", stats.ErrorRows))
	}
	fmt.Fprintln(w)
}

func statusColor(status string) string {
	switch status {
	case models.RunStatusCompleted, models.JobStatusSkipped:
		return color.GreenString(status)
	case models.RunStatusPartial, models.RunStatusRunning, models.JobStatusEnqueued:
		return color.YellowString(status)
	case models.RunStatusFailed:
		return color.RedString(status)
	default:
		return status
	}
}

func formatOptional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
