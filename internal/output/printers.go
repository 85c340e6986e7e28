// Package output renders command results as tables, json, yaml, value or
// csv documents.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Output format names accepted by the --output flag.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatValue = "value"
	FormatCSV   = "csv"
)

// Table is one renderable result set: ordered column names plus rows of
// cell values.
type Table struct {
	Columns []string
	Rows    [][]any
	// Single marks a one-resource result. It renders as field/value pairs
	// in table form and as a single document in json and yaml.
	Single bool
}

// List builds a multi-row table.
func List(columns []string, rows [][]any) *Table {
	return &Table{Columns: columns, Rows: rows}
}

// Object builds a single-resource table from parallel fields and values.
func Object(fields []string, values []any) *Table {
	return &Table{Columns: fields, Rows: [][]any{values}, Single: true}
}

// Printer renders one table of results.
type Printer interface {
	Print(t *Table, w io.Writer) error
}

// Options configures printers.
type Options struct {
	// NoHeaders omits the header row in table and csv output.
	NoHeaders bool
}

// Factory creates printers for the supported output formats.
type Factory struct {
	options *Options
}

func NewFactory(options *Options) *Factory {
	if options == nil {
		options = &Options{}
	}
	return &Factory{options: options}
}

// NewPrinter creates a printer for the named format. An empty format means
// table.
func (f *Factory) NewPrinter(format string) (Printer, error) {
	switch format {
	case "", FormatTable:
		return NewTablePrinter(f.options), nil
	case FormatJSON:
		return NewJSONPrinter(), nil
	case FormatYAML:
		return NewYAMLPrinter(), nil
	case FormatValue:
		return NewValuePrinter(), nil
	case FormatCSV:
		return NewCSVPrinter(f.options), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q, pick one of %v",
			format, SupportedFormats())
	}
}

// SupportedFormats returns the accepted output format names.
func SupportedFormats() []string {
	return []string{FormatTable, FormatJSON, FormatYAML, FormatValue, FormatCSV}
}

// formatCell renders one cell value. Structured values come out as compact
// JSON so nested documents survive tabular output.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case map[string]any, []any:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// document converts the table into the structure json and yaml render: a
// field map per row, or one map for single-resource tables.
func (t *Table) document() any {
	docs := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		doc := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				doc[col] = row[i]
			}
		}
		docs = append(docs, doc)
	}
	if t.Single {
		if len(docs) == 0 {
			return map[string]any{}
		}
		return docs[0]
	}
	return docs
}

// SortRows orders rows by the named column, string-wise. Unknown columns
// leave the table untouched.
func (t *Table) SortRows(column string) {
	idx := -1
	for i, col := range t.Columns {
		if col == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return formatCell(t.Rows[i][idx]) < formatCell(t.Rows[j][idx])
	})
}
