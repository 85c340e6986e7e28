package commands

import (
	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/config"
)

// NewConfigCommand groups the local configuration helpers. They never touch
// the network, so they do not take the shared runtime.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the placectl configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		outputPath string
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented configuration template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(outputPath, force); err != nil {
				return err
			}
			cmd.Printf("Wrote placectl config template to %s\n", outputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", config.DefaultFileName,
		"Path to write the template to")
	cmd.Flags().BoolVar(&force, "force", false,
		"Overwrite the file if it already exists")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Check that a configuration file loads and is usable",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFileName
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			cmd.Printf("Validated placectl config at %s\n", path)
			return nil
		},
	}
}
