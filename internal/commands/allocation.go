package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	logs "github.com/danmuck/placectl/internal/logging"
	"github.com/danmuck/placectl/internal/microversion"
	"github.com/danmuck/placectl/internal/output"
	"github.com/danmuck/placectl/internal/placement"
)

// parseAllocationArgument parses one rp=UUID,CLASS=AMOUNT[,CLASS=AMOUNT...]
// argument into the provider uuid and its amounts by class.
func parseAllocationArgument(allocation string) (string, map[string]int64, error) {
	if !strings.Contains(allocation, "=") || !strings.Contains(allocation, ",") {
		return "", nil, errors.New("Incorrect allocation string format")
	}
	pairs := map[string]string{}
	for _, kv := range strings.Split(allocation, ",") {
		parts := strings.Split(kv, "=")
		if len(parts) != 2 {
			return "", nil, errors.New("Incorrect allocation string format")
		}
		pairs[parts[0]] = parts[1]
	}
	rp, ok := pairs["rp"]
	if !ok {
		return "", nil, errors.New("Resource provider parameter is required for allocation string")
	}
	resources := make(map[string]int64, len(pairs)-1)
	for class, raw := range pairs {
		if class == "rp" {
			continue
		}
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid amount %q for resource class %s", raw, class)
		}
		resources[class] = amount
	}
	return rp, resources, nil
}

// parseAllocations merges repeated allocation strings per provider,
// rejecting conflicting amounts for the same provider and class.
func parseAllocations(allocationStrings []string) (map[string]map[string]int64, error) {
	allocations := map[string]map[string]int64{}
	for _, s := range allocationStrings {
		rp, resources, err := parseAllocationArgument(s)
		if err != nil {
			return nil, err
		}
		merged, ok := allocations[rp]
		if !ok {
			allocations[rp] = resources
			continue
		}
		for class, amount := range resources {
			if prev, ok := merged[class]; ok && prev != amount {
				return nil, fmt.Errorf("Conflict detected for resource provider %s resource class %s",
					rp, class)
			}
			merged[class] = amount
		}
	}
	return allocations, nil
}

// allocationEntry is one provider's share of a consumer allocation.
type allocationEntry struct {
	Resources  map[string]int64 `json:"resources"`
	Generation int64            `json:"generation"`
}

// allocationsDocument is the consumer allocations envelope. The consumer
// fields only appear at their microversions.
type allocationsDocument struct {
	Allocations        map[string]allocationEntry `json:"allocations"`
	ProjectID          string                     `json:"project_id"`
	UserID             string                     `json:"user_id"`
	ConsumerGeneration *int64                     `json:"consumer_generation"`
}

func fetchAllocations(ctx context.Context, client *placement.Client, consumer string) (allocationsDocument, error) {
	resp, err := client.Request(ctx, http.MethodGet, "/allocations/"+consumer, nil)
	if err != nil {
		return allocationsDocument{}, err
	}
	var doc allocationsDocument
	if err := resp.JSON(&doc); err != nil {
		return allocationsDocument{}, err
	}
	return doc, nil
}

// renderAllocations prints the consumer's allocations one provider per row,
// appending the project and user columns from 1.12 on.
func renderAllocations(cmd *cobra.Command, client *placement.Client, doc allocationsDocument) error {
	withConsumer, err := client.AllowsVersion(microversion.Ge("1.12"))
	if err != nil {
		return err
	}
	columns := []string{"resource_provider", "generation", "resources"}
	if withConsumer {
		columns = append(columns, "project_id", "user_id")
	}
	rows := make([][]any, 0, len(doc.Allocations))
	for _, rp := range sortedKeys(doc.Allocations) {
		entry := doc.Allocations[rp]
		row := []any{rp, entry.Generation, resourcesCell(entry.Resources)}
		if withConsumer {
			row = append(row, doc.ProjectID, doc.UserID)
		}
		rows = append(rows, row)
	}
	return renderTable(cmd, output.List(columns, rows))
}

// NewAllocationCommand groups the consumer allocation operations.
func NewAllocationCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocation",
		Short: "Manage consumer allocations",
	}
	cmd.AddCommand(
		newAllocationSetCommand(rt),
		newAllocationShowCommand(rt),
		newAllocationUnsetCommand(rt),
		newAllocationDeleteCommand(rt),
	)
	return cmd
}

func newAllocationSetCommand(rt *Runtime) *cobra.Command {
	var (
		allocationStrings []string
		projectID         string
		userID            string
	)
	cmd := &cobra.Command{
		Use:   "set <consumer_uuid>",
		Short: "Replace the allocations of a consumer",
		Long: `Replaces all resource allocations of the consumer. The replacement is
complete: to keep an existing allocation it must be repeated in the
new set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}

			allocations, err := parseAllocations(allocationStrings)
			if err != nil {
				return err
			}
			if len(allocations) == 0 {
				return errors.New("At least one resource allocation must be specified")
			}

			keyed, err := client.AllowsVersion(microversion.Ge("1.12"))
			if err != nil {
				return err
			}
			payload := map[string]any{}
			if keyed {
				entries := make(map[string]any, len(allocations))
				for rp, resources := range allocations {
					entries[rp] = map[string]any{"resources": resources}
				}
				payload["allocations"] = entries
			} else {
				entries := make([]any, 0, len(allocations))
				for _, rp := range sortedKeys(allocations) {
					entries = append(entries, map[string]any{
						"resource_provider": map[string]any{"uuid": rp},
						"resources":         allocations[rp],
					})
				}
				payload["allocations"] = entries
			}

			withConsumer, err := client.AllowsVersion(microversion.Ge("1.8"))
			if err != nil {
				return err
			}
			if withConsumer {
				if projectID == "" || userID == "" {
					return errors.New("--project-id and --user-id are required at version 1.8 and above")
				}
				payload["project_id"] = projectID
				payload["user_id"] = userID
			} else if projectID != "" || userID != "" {
				logs.Warnf("allocation.set --project-id and --user-id do not affect the allocation below version 1.8")
			}

			guarded, err := client.AllowsVersion(microversion.Ge("1.28"))
			if err != nil {
				return err
			}
			if guarded {
				// A new consumer is claimed with a null generation.
				current, err := fetchAllocations(ctx, client, args[0])
				if err != nil {
					return err
				}
				payload["consumer_generation"] = current.ConsumerGeneration
			}

			if _, err := client.Request(ctx, http.MethodPut, "/allocations/"+args[0],
				&placement.RequestOptions{JSON: payload}); err != nil {
				return err
			}
			doc, err := fetchAllocations(ctx, client, args[0])
			if err != nil {
				return err
			}
			return renderAllocations(cmd, client, doc)
		},
	}
	cmd.Flags().StringArrayVar(&allocationStrings, "allocation", nil,
		"rp=UUID,CLASS=AMOUNT allocation against one provider, may be repeated")
	cmd.Flags().StringVar(&projectID, "project-id", "",
		"Project holding the allocation, required at version 1.8 and above")
	cmd.Flags().StringVar(&userID, "user-id", "",
		"User holding the allocation, required at version 1.8 and above")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newAllocationShowCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <consumer_uuid>",
		Short: "Show the allocations of a consumer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			doc, err := fetchAllocations(ctx, client, args[0])
			if err != nil {
				return err
			}
			return renderAllocations(cmd, client, doc)
		},
	}
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newAllocationUnsetCommand(rt *Runtime) *cobra.Command {
	var (
		providers []string
		classes   []string
	)
	cmd := &cobra.Command{
		Use:   "unset <consumer_uuid>",
		Short: "Remove providers or classes from the allocations of a consumer",
		Long: `Removes the named providers and resource classes from the consumer's
allocations and writes back the rest. Without --provider and
--resource-class every allocation of the consumer is removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(microversion.Ge("1.12")); err != nil {
				return err
			}

			doc, err := fetchAllocations(ctx, client, args[0])
			if err != nil {
				return err
			}
			remaining := make(map[string]map[string]int64, len(doc.Allocations))
			for rp, entry := range doc.Allocations {
				remaining[rp] = entry.Resources
			}
			if len(providers) == 0 && len(classes) == 0 {
				remaining = map[string]map[string]int64{}
			} else {
				for _, rp := range providers {
					delete(remaining, rp)
				}
				for rp, resources := range remaining {
					for _, class := range classes {
						delete(resources, class)
					}
					if len(resources) == 0 {
						delete(remaining, rp)
					}
				}
			}

			entries := make(map[string]any, len(remaining))
			for rp, resources := range remaining {
				entries[rp] = map[string]any{"resources": resources}
			}
			payload := map[string]any{
				"allocations": entries,
				"project_id":  doc.ProjectID,
				"user_id":     doc.UserID,
			}
			guarded, err := client.AllowsVersion(microversion.Ge("1.28"))
			if err != nil {
				return err
			}
			if guarded {
				payload["consumer_generation"] = doc.ConsumerGeneration
			}

			if _, err := client.Request(ctx, http.MethodPut, "/allocations/"+args[0],
				&placement.RequestOptions{JSON: payload}); err != nil {
				return err
			}
			after, err := fetchAllocations(ctx, client, args[0])
			if err != nil {
				return err
			}
			return renderAllocations(cmd, client, after)
		},
	}
	cmd.Flags().StringArrayVar(&providers, "provider", nil,
		"UUID of a provider to drop from the allocations, may be repeated")
	cmd.Flags().StringArrayVar(&classes, "resource-class", nil,
		"Resource class to drop from every provider allocation, may be repeated")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newAllocationDeleteCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <consumer_uuid>",
		Short: "Delete all allocations of a consumer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			_, err = client.Request(ctx, http.MethodDelete, "/allocations/"+args[0], nil)
			return err
		},
	}
}
