package output

import (
	"encoding/json"
	"io"
)

// jsonPrinter prints results as indented JSON.
type jsonPrinter struct{}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter() Printer {
	return &jsonPrinter{}
}

func (p *jsonPrinter) Print(t *Table, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(t.document())
}
