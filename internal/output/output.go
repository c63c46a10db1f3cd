// Package output renders CLI results as tables, markdown or JSON.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// Extension returns the file extension used when writing format to disk.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

// Table is a titled result set. Records, when set, is what JSON output
// marshals; otherwise each row becomes an object keyed by header.
type Table struct {
	Title   string
	Header  []string
	Rows    [][]any
	Empty   string
	Records any
}

// Render writes t to w in format.
func Render(w io.Writer, format Format, t Table) error {
	var (
		rendered string
		err      error
	)
	switch format {
	case FormatJSON:
		rendered, err = renderJSON(t)
	case FormatMarkdown:
		rendered = renderMarkdown(t)
	default:
		rendered = renderTable(t)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}
