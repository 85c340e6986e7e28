package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	logs "github.com/danmuck/placectl/internal/logging"
	"github.com/danmuck/placectl/internal/microversion"
	"github.com/danmuck/placectl/internal/output"
	"github.com/danmuck/placectl/internal/placement"
)

// inventoryFields is the field order of inventory records in payloads and
// rendered tables. total is the implied field of a bare CLASS=VALUE
// argument and the only one the service requires.
var inventoryFields = []string{
	"allocation_ratio", "min_unit", "max_unit", "reserved", "step_size", "total",
}

// resourceUpdate is one parsed CLASS:FIELD=VALUE argument.
type resourceUpdate struct {
	class string
	field string
	value any
}

// parseResourceArgument splits a CLASS:FIELD=VALUE or CLASS=VALUE argument,
// typing the value per field. allocation_ratio is a float, everything else
// an integer.
func parseResourceArgument(resource string) (resourceUpdate, error) {
	parts := strings.Split(resource, "=")
	if len(parts) != 2 {
		return resourceUpdate{}, errors.New(`Resource argument must have "name=value" format`)
	}
	name, raw := parts[0], parts[1]
	field := "total"
	switch nameParts := strings.Split(name, ":"); len(nameParts) {
	case 1:
	case 2:
		name, field = nameParts[0], nameParts[1]
	default:
		return resourceUpdate{}, errors.New("Resource argument can contain only one colon")
	}
	if name == "" || field == "" || raw == "" {
		return resourceUpdate{}, errors.New("Name, field and value must be not empty")
	}

	var value any
	switch field {
	case "allocation_ratio":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return resourceUpdate{}, fmt.Errorf("invalid value %q for inventory field %s", raw, field)
		}
		value = v
	case "min_unit", "max_unit", "reserved", "step_size", "total":
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return resourceUpdate{}, fmt.Errorf("invalid value %q for inventory field %s", raw, field)
		}
		value = v
	default:
		return resourceUpdate{}, fmt.Errorf("Unknown inventory field %s", field)
	}
	return resourceUpdate{class: name, field: field, value: value}, nil
}

// inventoryDocument is the inventories envelope of one provider, shared by
// GET and PUT. Amended documents keep the generation they were read with.
type inventoryDocument struct {
	Inventories map[string]map[string]any `json:"inventories"`
	Generation  int64                     `json:"resource_provider_generation"`
}

// inventoryRows flattens a document into one row per resource class.
func inventoryRows(doc inventoryDocument) [][]any {
	rows := make([][]any, 0, len(doc.Inventories))
	for _, class := range sortedKeys(doc.Inventories) {
		record := doc.Inventories[class]
		row := []any{class}
		for _, field := range inventoryFields {
			row = append(row, record[field])
		}
		rows = append(rows, row)
	}
	return rows
}

// setProviderInventory applies updates to one provider and returns the
// stored document, or the would-be payload on a dry run.
func setProviderInventory(
	ctx context.Context,
	client *placement.Client,
	rp providerRecord,
	updates []resourceUpdate,
	amend bool,
	dryRun bool,
) (inventoryDocument, error) {
	path := "/resource_providers/" + rp.UUID + "/inventories"

	doc := inventoryDocument{
		Inventories: map[string]map[string]any{},
		Generation:  rp.Generation,
	}
	if amend {
		resp, err := client.Request(ctx, http.MethodGet, path, nil)
		if err != nil {
			return inventoryDocument{}, err
		}
		if err := resp.JSON(&doc); err != nil {
			return inventoryDocument{}, err
		}
		if doc.Inventories == nil {
			doc.Inventories = map[string]map[string]any{}
		}
	}
	for _, u := range updates {
		record := doc.Inventories[u.class]
		if record == nil {
			record = map[string]any{}
			doc.Inventories[u.class] = record
		}
		record[u.field] = u.value
	}

	if dryRun {
		return doc, nil
	}
	resp, err := client.Request(ctx, http.MethodPut, path, &placement.RequestOptions{JSON: doc})
	if err != nil {
		return inventoryDocument{}, err
	}
	var stored inventoryDocument
	if err := resp.JSON(&stored); err != nil {
		return inventoryDocument{}, err
	}
	return stored, nil
}

// NewInventoryCommand groups the inventory operations of a provider.
func NewInventoryCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Manage provider inventories",
	}
	cmd.AddCommand(
		newInventoryListCommand(rt),
		newInventoryShowCommand(rt),
		newInventorySetCommand(rt),
		newInventoryClassCommand(rt),
		newInventoryDeleteCommand(rt),
	)
	return cmd
}

func newInventorySetCommand(rt *Runtime) *cobra.Command {
	var (
		resources []string
		aggregate bool
		amend     bool
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "set <uuid>",
		Short: "Replace or amend the inventories of a provider",
		Long: `Replaces the full inventory of the provider with the --resource
arguments. With --amend the existing records are kept and only the
named fields change. With --aggregate the positional argument is an
aggregate uuid and every member provider is updated; failures are
reported per provider and the remaining members still proceed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := checkFlags(cmd, client.APIVersion(), flagRequirements{
				"aggregate": microversion.Ge("1.3"),
			}); err != nil {
				return err
			}

			updates := make([]resourceUpdate, 0, len(resources))
			for _, r := range resources {
				u, err := parseResourceArgument(r)
				if err != nil {
					return err
				}
				updates = append(updates, u)
			}

			var targets []providerRecord
			if aggregate {
				params := url.Values{}
				params.Set("member_of", args[0])
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
				if len(doc.Providers) == 0 {
					return fmt.Errorf("No resource providers found in aggregate with uuid %s.", args[0])
				}
				targets = doc.Providers
			} else {
				resp, err := client.Request(ctx, http.MethodGet, "/resource_providers/"+args[0], nil)
				if err != nil {
					return err
				}
				var rp providerRecord
				if err := resp.JSON(&rp); err != nil {
					return err
				}
				targets = []providerRecord{rp}
			}

			type result struct {
				provider string
				doc      inventoryDocument
			}
			results := make([]result, 0, len(targets))
			failed := 0
			for _, rp := range targets {
				doc, err := setProviderInventory(ctx, client, rp, updates, amend, dryRun)
				if err != nil {
					if !aggregate {
						return err
					}
					logs.Errf("inventory.set provider=%s error=%q", rp.UUID, err)
					failed++
					continue
				}
				results = append(results, result{provider: rp.UUID, doc: doc})
			}
			if failed > 0 {
				return fmt.Errorf("Failed to set inventory for %d of %d resource providers.",
					failed, len(targets))
			}

			columns := append([]string{"resource_class"}, inventoryFields...)
			if aggregate {
				columns = append([]string{"resource_provider"}, columns...)
			}
			rows := [][]any{}
			for _, res := range results {
				for _, row := range inventoryRows(res.doc) {
					if aggregate {
						row = append([]any{res.provider}, row...)
					}
					rows = append(rows, row)
				}
			}
			return renderTable(cmd, output.List(columns, rows))
		},
	}
	cmd.Flags().StringArrayVar(&resources, "resource", nil,
		"CLASS:FIELD=VALUE inventory field to set, FIELD defaults to total, may be repeated")
	cmd.Flags().BoolVar(&aggregate, "aggregate", false,
		"Treat <uuid> as an aggregate and set inventory on all member providers, requires at least version 1.3")
	cmd.Flags().BoolVar(&amend, "amend", false,
		"Amend the existing inventories instead of replacing them")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Render the inventories that would be set without writing them")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newInventoryClassCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "class",
		Short: "Manage one inventory class of a provider",
	}
	cmd.AddCommand(newInventoryClassSetCommand(rt))
	return cmd
}

func newInventoryClassSetCommand(rt *Runtime) *cobra.Command {
	var (
		allocationRatio float64
		minUnit         int64
		maxUnit         int64
		reserved        int64
		stepSize        int64
		total           int64
	)
	// flag name per payload field, in inventoryFields order
	fieldFlags := map[string]string{
		"allocation_ratio": "allocation-ratio",
		"min_unit":         "min-unit",
		"max_unit":         "max-unit",
		"reserved":         "reserved",
		"step_size":        "step-size",
		"total":            "total",
	}
	cmd := &cobra.Command{
		Use:   "set <uuid> <class>",
		Short: "Replace the inventory record of one class",
		Args:  cobra.ExactArgs(2),
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

			values := map[string]any{
				"allocation_ratio": allocationRatio,
				"min_unit":         minUnit,
				"max_unit":         maxUnit,
				"reserved":         reserved,
				"step_size":        stepSize,
				"total":            total,
			}
			payload := map[string]any{"resource_provider_generation": rp.Generation}
			for _, field := range inventoryFields {
				if cmd.Flags().Changed(fieldFlags[field]) {
					payload[field] = values[field]
				}
			}

			resp, err = client.Request(ctx, http.MethodPut,
				"/resource_providers/"+args[0]+"/inventories/"+args[1],
				&placement.RequestOptions{JSON: payload})
			if err != nil {
				return err
			}
			var stored map[string]any
			if err := resp.JSON(&stored); err != nil {
				return err
			}
			cells := make([]any, 0, len(inventoryFields))
			for _, field := range inventoryFields {
				cells = append(cells, stored[field])
			}
			return renderTable(cmd, output.Object(inventoryFields, cells))
		},
	}
	cmd.Flags().Float64Var(&allocationRatio, "allocation-ratio", 0,
		"Ratio consumption may exceed physical capacity by")
	cmd.Flags().Int64Var(&minUnit, "min-unit", 0, "Minimum amount a single allocation can claim")
	cmd.Flags().Int64Var(&maxUnit, "max-unit", 0, "Maximum amount a single allocation can claim")
	cmd.Flags().Int64Var(&reserved, "reserved", 0, "Amount reserved for the provider's own use")
	cmd.Flags().Int64Var(&stepSize, "step-size", 0, "Divisible amount allocations must be a multiple of")
	cmd.Flags().Int64Var(&total, "total", 0, "Amount of the resource the provider can accommodate")
	cmd.MarkFlagRequired("total")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newInventoryListCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <uuid>",
		Short: "List the inventories of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			resp, err := client.Request(ctx, http.MethodGet,
				"/resource_providers/"+args[0]+"/inventories", nil)
			if err != nil {
				return err
			}
			var doc inventoryDocument
			if err := resp.JSON(&doc); err != nil {
				return err
			}
			columns := append([]string{"resource_class"}, inventoryFields...)
			return renderTable(cmd, output.List(columns, inventoryRows(doc)))
		},
	}
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newInventoryShowCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <uuid> <class>",
		Short: "Show one inventory class of a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			resp, err := client.Request(ctx, http.MethodGet,
				"/resource_providers/"+args[0]+"/inventories/"+args[1], nil)
			if err != nil {
				return err
			}
			var record map[string]any
			if err := resp.JSON(&record); err != nil {
				return err
			}
			cells := make([]any, 0, len(inventoryFields))
			for _, field := range inventoryFields {
				cells = append(cells, record[field])
			}
			return renderTable(cmd, output.Object(inventoryFields, cells))
		},
	}
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newInventoryDeleteCommand(rt *Runtime) *cobra.Command {
	var resourceClass string
	cmd := &cobra.Command{
		Use:   "delete <uuid>",
		Short: "Delete inventories of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}

			path := "/resource_providers/" + args[0] + "/inventories"
			if resourceClass == "" {
				// Whole-provider delete only exists from 1.5 on.
				if err := client.CheckVersion(microversion.Ge("1.5")); err != nil {
					return err
				}
			} else {
				path += "/" + resourceClass
			}
			_, err = client.Request(ctx, http.MethodDelete, path, nil)
			return err
		},
	}
	cmd.Flags().StringVar(&resourceClass, "resource-class", "",
		"Delete only this class; required below version 1.5")
	return cmd
}
