package output

import (
	"encoding/json"
	"io"

	"sigs.k8s.io/yaml"
)

// yamlPrinter prints results as YAML.
type yamlPrinter struct{}

// NewYAMLPrinter creates a new YAML printer.
func NewYAMLPrinter() Printer {
	return &yamlPrinter{}
}

func (p *yamlPrinter) Print(t *Table, w io.Writer) error {
	jsonData, err := json.Marshal(t.document())
	if err != nil {
		return err
	}
	yamlData, err := yaml.JSONToYAML(jsonData)
	if err != nil {
		return err
	}
	_, err = w.Write(yamlData)
	return err
}
