package output

import (
	"encoding/csv"
	"io"
)

// csvPrinter prints results as RFC 4180 rows.
type csvPrinter struct {
	options *Options
}

// NewCSVPrinter creates a new CSV printer.
func NewCSVPrinter(options *Options) Printer {
	if options == nil {
		options = &Options{}
	}
	return &csvPrinter{options: options}
}

func (p *csvPrinter) Print(t *Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	if !p.options.NoHeaders {
		if err := cw.Write(t.Columns); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range t.Columns {
			if i < len(row) {
				cells[i] = formatCell(row[i])
			}
		}
		if err := cw.Write(cells); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
