package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// NewDocsCommand generates the markdown reference for the command tree.
// Hidden because it is a release chore, not an operator command.
func NewDocsCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:    "docs",
		Short:  "Generate markdown documentation for every command",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			return doc.GenMarkdownTree(cmd.Root(), dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "docs", "Directory to write the markdown files into")
	return cmd
}
