package commands

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/microversion"
	"github.com/danmuck/placectl/internal/output"
	"github.com/danmuck/placectl/internal/placement"
)

// providerRecord is the resource provider representation the service
// returns. Root and parent fields only appear at 1.14 and above.
type providerRecord struct {
	UUID       string  `json:"uuid"`
	Name       string  `json:"name"`
	Generation int64   `json:"generation"`
	RootUUID   string  `json:"root_provider_uuid"`
	ParentUUID *string `json:"parent_provider_uuid"`
}

func providerColumns(wide bool) []string {
	cols := []string{"uuid", "name", "generation"}
	if wide {
		cols = append(cols, "root_provider_uuid", "parent_provider_uuid")
	}
	return cols
}

func providerValues(rp providerRecord, wide bool) []any {
	vals := []any{rp.UUID, rp.Name, rp.Generation}
	if wide {
		vals = append(vals, rp.RootUUID, strOrEmpty(rp.ParentUUID))
	}
	return vals
}

// NewProviderCommand groups every resource provider operation.
func NewProviderCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage resource providers",
	}
	cmd.AddCommand(
		newProviderListCommand(rt),
		newProviderCreateCommand(rt),
		newProviderShowCommand(rt),
		newProviderSetCommand(rt),
		newProviderDeleteCommand(rt),
		NewInventoryCommand(rt),
		NewAggregateCommand(rt),
		NewProviderTraitCommand(rt),
		NewUsageCommand(rt),
	)
	return cmd
}

func newProviderCreateCommand(rt *Runtime) *cobra.Command {
	var (
		rpUUID string
		parent string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a resource provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := checkFlags(cmd, client.APIVersion(), flagRequirements{
				"parent-provider": microversion.Ge("1.14"),
			}); err != nil {
				return err
			}

			payload := map[string]any{"name": args[0]}
			if rpUUID != "" {
				payload["uuid"] = rpUUID
			}
			if parent != "" {
				payload["parent_provider_uuid"] = parent
			}
			resp, err := client.Request(ctx, http.MethodPost, "/resource_providers",
				&placement.RequestOptions{JSON: payload})
			if err != nil {
				return err
			}

			inBody, err := client.AllowsVersion(microversion.Ge("1.20"))
			if err != nil {
				return err
			}
			var rp providerRecord
			if inBody {
				if err := resp.JSON(&rp); err != nil {
					return err
				}
			} else {
				follow := locationPath(client.Endpoint(), resp.Header.Get("Location"))
				created, err := client.Request(ctx, http.MethodGet, follow, nil)
				if err != nil {
					return err
				}
				if err := created.JSON(&rp); err != nil {
					return err
				}
			}

			wide, err := client.AllowsVersion(microversion.Ge("1.14"))
			if err != nil {
				return err
			}
			return renderTable(cmd, output.Object(providerColumns(wide), providerValues(rp, wide)))
		},
	}
	cmd.Flags().StringVar(&rpUUID, "uuid", "", "UUID for the new provider, generated when omitted")
	cmd.Flags().StringVar(&parent, "parent-provider", "",
		"UUID of the parent provider, requires at least version 1.14")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newProviderListCommand(rt *Runtime) *cobra.Command {
	var (
		rpUUID     string
		name       string
		aggregates []string
		resources  []string
		inTree     string
		required   []string
		forbidden  []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resource providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := checkFlags(cmd, client.APIVersion(), flagRequirements{
				"aggregate-uuid": microversion.Ge("1.3"),
				"resource":       microversion.Ge("1.4"),
				"in-tree":        microversion.Ge("1.14"),
				"required":       microversion.Ge("1.17"),
				"forbidden":      microversion.Ge("1.22"),
			}); err != nil {
				return err
			}

			params := url.Values{}
			if name != "" {
				params.Set("name", name)
			}
			if rpUUID != "" {
				params.Set("uuid", rpUUID)
			}
			if len(aggregates) > 0 {
				params.Set("member_of", "in:"+strings.Join(aggregates, ","))
			}
			if len(resources) > 0 {
				params.Set("resources", joinResourceFilters(resources))
			}
			if inTree != "" {
				params.Set("in_tree", inTree)
			}
			addTraitParams(params, required, forbidden)

			resp, err := client.Request(ctx, http.MethodGet, "/resource_providers",
				&placement.RequestOptions{Params: params})
			if err != nil {
				return err
			}
			var doc struct {
				Providers []providerRecord `json:"resource_providers"`
			}
			if err := resp.JSON(&doc); err != nil {
				return err
			}

			wide, err := client.AllowsVersion(microversion.Ge("1.14"))
			if err != nil {
				return err
			}
			rows := make([][]any, 0, len(doc.Providers))
			for _, rp := range doc.Providers {
				rows = append(rows, providerValues(rp, wide))
			}
			return renderTable(cmd, output.List(providerColumns(wide), rows))
		},
	}
	cmd.Flags().StringVar(&rpUUID, "uuid", "", "Filter by provider UUID")
	cmd.Flags().StringVar(&name, "name", "", "Filter by provider name")
	cmd.Flags().StringArrayVar(&aggregates, "aggregate-uuid", nil,
		"Keep providers that are members of the aggregate, may be repeated, requires at least version 1.3")
	cmd.Flags().StringArrayVar(&resources, "resource", nil,
		"CLASS=VALUE capacity the providers must be able to serve, may be repeated, requires at least version 1.4")
	cmd.Flags().StringVar(&inTree, "in-tree", "",
		"Keep providers in the same tree as the named provider, requires at least version 1.14")
	cmd.Flags().StringArrayVar(&required, "required", nil,
		"Trait the providers must expose, comma-separate for alternatives, may be repeated, requires at least version 1.17")
	cmd.Flags().StringArrayVar(&forbidden, "forbidden", nil,
		"Trait the providers must not expose, may be repeated, requires at least version 1.22")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newProviderShowCommand(rt *Runtime) *cobra.Command {
	var withAllocations bool
	cmd := &cobra.Command{
		Use:   "show <uuid>",
		Short: "Show one resource provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
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

			wide, err := client.AllowsVersion(microversion.Ge("1.14"))
			if err != nil {
				return err
			}
			fields := providerColumns(wide)
			values := providerValues(rp, wide)

			if withAllocations {
				resp, err := client.Request(ctx, http.MethodGet,
					"/resource_providers/"+args[0]+"/allocations", nil)
				if err != nil {
					return err
				}
				var doc struct {
					Allocations map[string]any `json:"allocations"`
				}
				if err := resp.JSON(&doc); err != nil {
					return err
				}
				fields = append(fields, "allocations")
				values = append(values, doc.Allocations)
			}
			return renderTable(cmd, output.Object(fields, values))
		},
	}
	cmd.Flags().BoolVar(&withAllocations, "allocations", false,
		"Include current allocations against the provider")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newProviderSetCommand(rt *Runtime) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "set <uuid>",
		Short: "Rename a resource provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}

			resp, err := client.Request(ctx, http.MethodPut, "/resource_providers/"+args[0],
				&placement.RequestOptions{JSON: map[string]any{"name": name}})
			if err != nil {
				return err
			}
			var rp providerRecord
			if err := resp.JSON(&rp); err != nil {
				return err
			}

			wide, err := client.AllowsVersion(microversion.Ge("1.14"))
			if err != nil {
				return err
			}
			return renderTable(cmd, output.Object(providerColumns(wide), providerValues(rp, wide)))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name of the resource provider")
	cmd.MarkFlagRequired("name")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newProviderDeleteCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uuid>",
		Short: "Delete a resource provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			_, err = client.Request(ctx, http.MethodDelete, "/resource_providers/"+args[0], nil)
			return err
		},
	}
}
