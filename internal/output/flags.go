package output

import (
	"io"

	"github.com/spf13/pflag"
)

// Flag names for the output flag group.
const (
	FlagOutput    = "output"
	FlagNoHeaders = "no-headers"
	FlagSortBy    = "sort-by"
)

// Flags returns the flag group controlling result rendering.
func Flags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("output", pflag.ContinueOnError)

	flags.StringP(FlagOutput, "o", FormatTable, "Output format. One of: table|json|yaml|value|csv")
	flags.Bool(FlagNoHeaders, false, "Don't print headers (default print headers)")
	flags.String(FlagSortBy, "", "Sort rows by the named column before printing")

	return flags
}

// Config carries parsed output flag values.
type Config struct {
	Format    string
	NoHeaders bool
	SortBy    string
}

// ConfigFromFlags extracts printer settings from parsed flags.
func ConfigFromFlags(flags *pflag.FlagSet) (*Config, error) {
	format, err := flags.GetString(FlagOutput)
	if err != nil {
		return nil, err
	}
	noHeaders, err := flags.GetBool(FlagNoHeaders)
	if err != nil {
		return nil, err
	}
	sortBy, err := flags.GetString(FlagSortBy)
	if err != nil {
		return nil, err
	}
	return &Config{Format: format, NoHeaders: noHeaders, SortBy: sortBy}, nil
}

// Printer builds the printer this configuration names.
func (c *Config) Printer() (Printer, error) {
	factory := NewFactory(&Options{NoHeaders: c.NoHeaders})
	return factory.NewPrinter(c.Format)
}

// Render sorts (when requested) and prints the table through the configured
// printer.
func (c *Config) Render(t *Table, w io.Writer) error {
	printer, err := c.Printer()
	if err != nil {
		return err
	}
	if c.SortBy != "" {
		t.SortRows(c.SortBy)
	}
	return printer.Print(t, w)
}
