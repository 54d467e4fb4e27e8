package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"transskribo/internal/preflight"
)

const runElapsedPrecision = time.Second

func renderPreflight(w io.Writer, results []preflight.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Check", "Status", "Detail"})
	for _, result := range results {
		status := "FAIL"
		if result.Passed {
			status = "ok"
		}
		t.AppendRow(table.Row{result.Name, status, result.Detail})
	}
	t.Render()
}
