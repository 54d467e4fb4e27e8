package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Render writes the aggregate statistics as human-readable tables.
func Render(w io.Writer, stats Stats, pending int) {
	overview := table.NewWriter()
	overview.SetOutputMirror(w)
	overview.SetStyle(table.StyleLight)
	overview.SetTitle("Registry")
	overview.AppendRows([]table.Row{
		{"Entries", stats.TotalEntries},
		{"Succeeded", stats.Succeeded},
		{"Failed", stats.Failed},
		{"Audio processed", formatSeconds(stats.TotalAudioSecs)},
		{"Processing time", formatSeconds(stats.TotalProcessingSecs)},
	})
	if stats.SpeedRatio > 0 {
		overview.AppendRow(table.Row{"Speed", fmt.Sprintf("%.1fx realtime", stats.SpeedRatio)})
	}
	if pending > 0 {
		row := table.Row{"Pending files", pending}
		overview.AppendRow(row)
		if eta := stats.Estimate(pending); eta > 0 {
			overview.AppendRow(table.Row{"Estimated time", eta.Round(time.Second).String()})
		}
	}
	overview.Render()

	if stats.Succeeded == 0 {
		return
	}
	stages := table.NewWriter()
	stages.SetOutputMirror(w)
	stages.SetStyle(table.StyleLight)
	stages.SetTitle("Per-stage timing")
	stages.AppendHeader(table.Row{"Stage", "Avg", "Min", "Max"})
	for _, stage := range stats.Stages {
		stages.AppendRow(table.Row{
			stage.Name,
			formatSeconds(stage.Avg),
			formatSeconds(stage.Min),
			formatSeconds(stage.Max),
		})
	}
	stages.Render()
}

// RenderFailures writes the failed-entry table, or nothing if there are none.
func RenderFailures(w io.Writer, failures []Failure) {
	if len(failures) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Failures")
	t.AppendHeader(table.Row{"Source", "When", "Error"})
	for _, failure := range failures {
		t.AppendRow(table.Row{failure.SourcePath, failure.Timestamp, failure.Error})
	}
	t.Render()
}

func formatSeconds(secs float64) string {
	if secs <= 0 {
		return "0s"
	}
	d := time.Duration(secs * float64(time.Second))
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", secs)
	}
	return d.Round(time.Second).String()
}
