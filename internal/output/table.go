package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// tablePrinter renders ASCII grid tables.
type tablePrinter struct {
	options *Options
}

// NewTablePrinter creates the default human-readable printer.
func NewTablePrinter(options *Options) Printer {
	if options == nil {
		options = &Options{}
	}
	return &tablePrinter{options: options}
}

func (p *tablePrinter) Print(t *Table, w io.Writer) error {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

	if t.Single {
		if !p.options.NoHeaders {
			tw.SetHeader([]string{"field", "value"})
		}
		if len(t.Rows) > 0 {
			row := t.Rows[0]
			for i, col := range t.Columns {
				var cell string
				if i < len(row) {
					cell = formatCell(row[i])
				}
				tw.Append([]string{col, cell})
			}
		}
		tw.Render()
		return nil
	}

	if !p.options.NoHeaders {
		tw.SetHeader(t.Columns)
	}
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range t.Columns {
			if i < len(row) {
				cells[i] = formatCell(row[i])
			}
		}
		tw.Append(cells)
	}
	tw.Render()
	return nil
}
