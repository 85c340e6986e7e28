package commands

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/microversion"
)

// flagRequirements names the flags of a command that impose a revision
// requirement when used.
type flagRequirements map[string]microversion.Requirement

// checkFlags rejects explicitly set flags the session version cannot honor.
// Flags left at their defaults are never checked. Names are visited in
// sorted order so the first failure is deterministic.
func checkFlags(cmd *cobra.Command, version string, reqs flagRequirements) error {
	names := make([]string, 0, len(reqs))
	for name := range reqs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !cmd.Flags().Changed(name) {
			continue
		}
		if err := microversion.Check(version, reqs[name]); err != nil {
			return err
		}
	}
	return nil
}
