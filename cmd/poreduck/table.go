package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column is one table column. A non-zero wrap folds long cells onto
// additional lines.
type column struct {
	header string
	right  bool
	wrap   int
}

type tableLayout []column

var (
	statusLayout = tableLayout{
		{header: "Item"},
		{header: "Phase"},
		{header: "Extract Job", right: true},
		{header: "Basecall Job", right: true},
		{header: "Attempts", right: true},
		{header: "Fastq"},
		{header: "Archived"},
		{header: "Note", wrap: 48},
	}
	dependencyLayout = tableLayout{
		{header: "Dependency"},
		{header: "Command"},
		{header: "Status"},
		{header: "Detail", wrap: 60},
	}
	preflightLayout = tableLayout{
		{header: "Check"},
		{header: "Status"},
		{header: "Detail", wrap: 60},
	}
	directoryLayout = tableLayout{
		{header: "Directory"},
		{header: "Path"},
	}
)

// render draws rows with the rounded style. Short rows are padded.
func (l tableLayout) render(rows [][]string) string {
	if len(l) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(l))
	configs := make([]table.ColumnConfig, 0, len(l))
	for i, col := range l {
		header[i] = col.header
		align := text.AlignLeft
		if col.right {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    col.wrap,
		})
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(l))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}
