package output

import (
	"fmt"
	"io"
	"strings"
)

// valuePrinter prints bare cell values, one row per line, for shell
// consumption.
type valuePrinter struct{}

// NewValuePrinter creates a new value printer.
func NewValuePrinter() Printer {
	return &valuePrinter{}
}

func (p *valuePrinter) Print(t *Table, w io.Writer) error {
	for _, row := range t.Rows {
		cells := make([]string, 0, len(row))
		for _, v := range row {
			cells = append(cells, formatCell(v))
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, " ")); err != nil {
			return err
		}
	}
	return nil
}
