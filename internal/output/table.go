package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

func newWriter(t Table) table.Writer {
	tw := table.NewWriter()
	if t.Title != "" {
		tw.SetTitle(t.Title)
	}
	header := make(table.Row, 0, len(t.Header))
	for _, h := range t.Header {
		header = append(header, h)
	}
	tw.AppendHeader(header)
	for _, row := range t.Rows {
		tw.AppendRow(table.Row(row))
	}
	return tw
}

func renderTable(t Table) string {
	tw := newWriter(t)
	tw.SetStyle(table.StyleRounded)
	if len(t.Rows) == 0 && t.Empty != "" {
		tw.AppendFooter(table.Row{t.Empty})
	}
	return tw.Render()
}

func renderMarkdown(t Table) string {
	tw := newWriter(t)
	out := tw.RenderMarkdown()
	if len(t.Rows) == 0 && t.Empty != "" {
		out += "\n\n_" + t.Empty + "_"
	}
	return out
}
