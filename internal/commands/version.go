package commands

import (
	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/microversion"
)

// Version is the client release, overridable at link time.
var Version = "0.1.0"

// NewVersionCommand reports the client release and the API microversions
// the client knows how to speak.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client and supported API version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("placectl %s\n", Version)
			cmd.Printf("supported API versions: %s .. %s\n",
				microversion.Supported[0], microversion.Supported[len(microversion.Supported)-1])
			cmd.Printf("max version without gaps: %s\n", microversion.MaxNoGap)
			return nil
		},
	}
}
