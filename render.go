package main

import (
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
)

// renderAnnotationTable renders a compact console summary of the run.
// Rounded borders on a terminal, plain ASCII when piped.
func renderAnnotationTable(rows []AnnotationRow, withModel bool) string {
	tw := table.NewWriter()
	if isatty.IsTerminal(os.Stdout.Fd()) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	header := table.Row{"cluster", "cell type", "subtype", "confidence", "attempts"}
	if withModel {
		header = append(header, "model")
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := table.Row{row.Cluster, row.CellType, row.Subtype, row.Confidence, strconv.Itoa(row.Attempts)}
		if withModel {
			r = append(r, row.Model)
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}
