package commands

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/microversion"
	"github.com/danmuck/placectl/internal/output"
	"github.com/danmuck/placectl/internal/placement"
)

// Traits exist from 1.6 on; every trait operation carries this gate.
var traitsSince = microversion.Ge("1.6")

// traitsDocument is the trait list envelope, shared by the catalog and the
// per-provider endpoints.
type traitsDocument struct {
	Traits []string `json:"traits"`
}

func traitRows(names []string) [][]any {
	rows := make([][]any, 0, len(names))
	for _, n := range names {
		rows = append(rows, []any{n})
	}
	return rows
}

// NewTraitCommand groups the trait catalog operations.
func NewTraitCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trait",
		Short: "Manage the trait catalog",
	}
	cmd.AddCommand(
		newTraitListCommand(rt),
		newTraitShowCommand(rt),
		newTraitCreateCommand(rt),
		newTraitDeleteCommand(rt),
	)
	return cmd
}

func newTraitListCommand(rt *Runtime) *cobra.Command {
	var (
		name       string
		associated bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trait names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(traitsSince); err != nil {
				return err
			}

			params := url.Values{}
			if name != "" {
				params.Set("name", name)
			}
			if associated {
				params.Set("associated", "true")
			}
			resp, err := client.Request(ctx, http.MethodGet, "/traits",
				&placement.RequestOptions{Params: params})
			if err != nil {
				return err
			}
			var doc traitsDocument
			if err := resp.JSON(&doc); err != nil {
				return err
			}
			return renderTable(cmd, output.List([]string{"name"}, traitRows(doc.Traits)))
		},
	}
	cmd.Flags().StringVar(&name, "name", "",
		"Filter trait names, e.g. startswith:CUSTOM or in:HW_CPU_X86_AVX,HW_CPU_X86_SSE")
	cmd.Flags().BoolVar(&associated, "associated", false,
		"Keep only traits associated with at least one provider")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newTraitShowCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Check that a trait name exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(traitsSince); err != nil {
				return err
			}
			if _, err := client.Request(ctx, http.MethodGet, "/traits/"+args[0], nil); err != nil {
				return err
			}
			return renderTable(cmd, output.Object([]string{"name"}, []any{args[0]}))
		},
	}
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newTraitCreateCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a custom trait",
		Long: `Creates a custom trait. Custom trait names must start with CUSTOM_
and contain only A-Z, 0-9 and underscores.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(traitsSince); err != nil {
				return err
			}
			_, err = client.Request(ctx, http.MethodPut, "/traits/"+args[0], nil)
			return err
		},
	}
}

func newTraitDeleteCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a trait",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(traitsSince); err != nil {
				return err
			}
			_, err = client.Request(ctx, http.MethodDelete, "/traits/"+args[0], nil)
			return err
		},
	}
}

// NewProviderTraitCommand groups the trait operations of one provider.
func NewProviderTraitCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trait",
		Short: "Manage the traits of a provider",
	}
	cmd.AddCommand(
		newProviderTraitListCommand(rt),
		newProviderTraitSetCommand(rt),
		newProviderTraitDeleteCommand(rt),
	)
	return cmd
}

func newProviderTraitListCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <uuid>",
		Short: "List the traits of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(traitsSince); err != nil {
				return err
			}
			resp, err := client.Request(ctx, http.MethodGet,
				"/resource_providers/"+args[0]+"/traits", nil)
			if err != nil {
				return err
			}
			var doc traitsDocument
			if err := resp.JSON(&doc); err != nil {
				return err
			}
			return renderTable(cmd, output.List([]string{"name"}, traitRows(doc.Traits)))
		},
	}
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newProviderTraitSetCommand(rt *Runtime) *cobra.Command {
	var traits []string
	cmd := &cobra.Command{
		Use:   "set <uuid>",
		Short: "Replace the traits of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(traitsSince); err != nil {
				return err
			}

			resp, err := client.Request(ctx, http.MethodGet, "/resource_providers/"+args[0], nil)
			if err != nil {
				return err
			}
			var rp providerRecord
			if err := resp.JSON(&rp); err != nil {
				return err
			}

			list := traits
			if list == nil {
				list = []string{}
			}
			resp, err = client.Request(ctx, http.MethodPut,
				"/resource_providers/"+args[0]+"/traits",
				&placement.RequestOptions{JSON: map[string]any{
					"resource_provider_generation": rp.Generation,
					"traits":                       list,
				}})
			if err != nil {
				return err
			}
			var doc traitsDocument
			if err := resp.JSON(&doc); err != nil {
				return err
			}
			return renderTable(cmd, output.List([]string{"name"}, traitRows(doc.Traits)))
		},
	}
	cmd.Flags().StringArrayVar(&traits, "trait", nil,
		"Name of a trait to associate, may be repeated; none dissociates all")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newProviderTraitDeleteCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uuid>",
		Short: "Dissociate all traits from a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(traitsSince); err != nil {
				return err
			}
			_, err = client.Request(ctx, http.MethodDelete,
				"/resource_providers/"+args[0]+"/traits", nil)
			return err
		},
	}
}
