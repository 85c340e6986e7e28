package commands

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/microversion"
	"github.com/danmuck/placectl/internal/output"
	"github.com/danmuck/placectl/internal/placement"
)

// aggregatesDocument is the aggregates envelope of one provider.
type aggregatesDocument struct {
	Aggregates []string `json:"aggregates"`
}

func aggregateRows(uuids []string) [][]any {
	rows := make([][]any, 0, len(uuids))
	for _, u := range uuids {
		rows = append(rows, []any{u})
	}
	return rows
}

// NewAggregateCommand groups the aggregate membership operations of a
// provider. Aggregates exist from 1.1 on.
func NewAggregateCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Manage provider aggregate membership",
	}
	cmd.AddCommand(newAggregateListCommand(rt), newAggregateSetCommand(rt))
	return cmd
}

func newAggregateListCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <uuid>",
		Short: "List the aggregates a provider is a member of",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(microversion.Ge("1.1")); err != nil {
				return err
			}
			resp, err := client.Request(ctx, http.MethodGet,
				"/resource_providers/"+args[0]+"/aggregates", nil)
			if err != nil {
				return err
			}
			var doc aggregatesDocument
			if err := resp.JSON(&doc); err != nil {
				return err
			}
			return renderTable(cmd, output.List([]string{"uuid"}, aggregateRows(doc.Aggregates)))
		},
	}
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newAggregateSetCommand(rt *Runtime) *cobra.Command {
	var (
		aggregates []string
		generation int64
	)
	cmd := &cobra.Command{
		Use:   "set <uuid>",
		Short: "Replace the aggregate associations of a provider",
		Long: `Replaces all aggregate associations of the provider with the given
--aggregate uuids. No --aggregate dissociates the provider from every
aggregate. From 1.19 on the write is guarded by the provider
generation and --generation becomes mandatory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(microversion.Ge("1.1")); err != nil {
				return err
			}
			if err := checkFlags(cmd, client.APIVersion(), flagRequirements{
				"generation": microversion.Ge("1.19"),
			}); err != nil {
				return err
			}

			list := aggregates
			if list == nil {
				list = []string{}
			}
			guarded, err := client.AllowsVersion(microversion.Ge("1.19"))
			if err != nil {
				return err
			}
			var payload any
			switch {
			case !guarded:
				payload = list
			case cmd.Flags().Changed("generation"):
				payload = map[string]any{
					"aggregates":                   list,
					"resource_provider_generation": generation,
				}
			default:
				return errors.New("A generation must be specified.")
			}

			resp, err := client.Request(ctx, http.MethodPut,
				"/resource_providers/"+args[0]+"/aggregates",
				&placement.RequestOptions{JSON: payload})
			if err != nil {
				return err
			}
			var doc aggregatesDocument
			if err := resp.JSON(&doc); err != nil {
				return err
			}
			return renderTable(cmd, output.List([]string{"uuid"}, aggregateRows(doc.Aggregates)))
		},
	}
	cmd.Flags().StringArrayVar(&aggregates, "aggregate", nil,
		"UUID of an aggregate to associate, may be repeated")
	cmd.Flags().Int64Var(&generation, "generation", 0,
		"Provider generation the write must match, requires at least version 1.19")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}
