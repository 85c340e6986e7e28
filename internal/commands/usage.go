package commands

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/output"
)

// NewUsageCommand groups the provider usage operations.
func NewUsageCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect resource usage of a provider",
	}
	cmd.AddCommand(newUsageShowCommand(rt))
	return cmd
}

func newUsageShowCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <uuid>",
		Short: "Show the amounts consumed from a provider by resource class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			resp, err := client.Request(ctx, http.MethodGet,
				"/resource_providers/"+args[0]+"/usages", nil)
			if err != nil {
				return err
			}
			var doc struct {
				Usages map[string]int64 `json:"usages"`
			}
			if err := resp.JSON(&doc); err != nil {
				return err
			}
			rows := make([][]any, 0, len(doc.Usages))
			for _, class := range sortedKeys(doc.Usages) {
				rows = append(rows, []any{class, doc.Usages[class]})
			}
			return renderTable(cmd, output.List([]string{"resource_class", "usage"}, rows))
		},
	}
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}
