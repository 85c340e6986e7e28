package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/microversion"
	"github.com/danmuck/placectl/internal/output"
	"github.com/danmuck/placectl/internal/placement"
)

// candidateDocument is the allocation candidates envelope. The allocation
// requests stay raw because their shape changes at 1.12.
type candidateDocument struct {
	AllocationRequests []json.RawMessage `json:"allocation_requests"`
	ProviderSummaries  map[string]struct {
		Resources map[string]struct {
			Used     int64 `json:"used"`
			Capacity int64 `json:"capacity"`
		} `json:"resources"`
	} `json:"provider_summaries"`
}

// candidateAllocation is one provider's share of an allocation request.
type candidateAllocation struct {
	rp        string
	resources map[string]int64
}

func decodeCandidateRequest(raw json.RawMessage, keyed bool) ([]candidateAllocation, error) {
	if keyed {
		var req struct {
			Allocations map[string]struct {
				Resources map[string]int64 `json:"resources"`
			} `json:"allocations"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		out := make([]candidateAllocation, 0, len(req.Allocations))
		for _, rp := range sortedKeys(req.Allocations) {
			out = append(out, candidateAllocation{rp: rp, resources: req.Allocations[rp].Resources})
		}
		return out, nil
	}
	var req struct {
		Allocations []struct {
			ResourceProvider struct {
				UUID string `json:"uuid"`
			} `json:"resource_provider"`
			Resources map[string]int64 `json:"resources"`
		} `json:"allocations"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	out := make([]candidateAllocation, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		out = append(out, candidateAllocation{rp: a.ResourceProvider.UUID, resources: a.Resources})
	}
	return out, nil
}

// summaryCell renders a provider's inventory as CLASS=used/capacity pairs.
func summaryCell(doc candidateDocument, rp string) string {
	summary, ok := doc.ProviderSummaries[rp]
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(summary.Resources))
	for _, class := range sortedKeys(summary.Resources) {
		usage := summary.Resources[class]
		parts = append(parts, fmt.Sprintf("%s=%d/%d", class, usage.Used, usage.Capacity))
	}
	return strings.Join(parts, ",")
}

// NewCandidateCommand groups the allocation candidate operations.
func NewCandidateCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidate",
		Short: "Inspect allocation candidates",
	}
	cmd.AddCommand(newCandidateListCommand(rt))
	return cmd
}

func newCandidateListCommand(rt *Runtime) *cobra.Command {
	var (
		resources []string
		required  []string
		forbidden []string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List allocation candidates for a set of resource requirements",
		Long: `Lists the providers that could serve the requested resources, one row
per provider per allocation request, numbered so the providers of one
request can be told apart from the next.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(microversion.Ge("1.10")); err != nil {
				return err
			}
			if len(resources) == 0 {
				return errors.New("At least one --resource must be specified.")
			}
			if err := checkFlags(cmd, client.APIVersion(), flagRequirements{
				"limit":     microversion.Ge("1.16"),
				"required":  microversion.Ge("1.17"),
				"forbidden": microversion.Ge("1.22"),
			}); err != nil {
				return err
			}

			params := url.Values{}
			params.Set("resources", joinResourceFilters(resources))
			if cmd.Flags().Changed("limit") {
				params.Set("limit", strconv.Itoa(limit))
			}
			addTraitParams(params, required, forbidden)

			resp, err := client.Request(ctx, http.MethodGet, "/allocation_candidates",
				&placement.RequestOptions{Params: params})
			if err != nil {
				return err
			}
			var doc candidateDocument
			if err := resp.JSON(&doc); err != nil {
				return err
			}

			keyed, err := client.AllowsVersion(microversion.Ge("1.12"))
			if err != nil {
				return err
			}
			rows := make([][]any, 0, len(doc.AllocationRequests))
			for i, raw := range doc.AllocationRequests {
				allocations, err := decodeCandidateRequest(raw, keyed)
				if err != nil {
					return err
				}
				for _, a := range allocations {
					rows = append(rows, []any{
						i + 1, joinResources(a.resources), a.rp, summaryCell(doc, a.rp),
					})
				}
			}
			return renderTable(cmd, output.List(
				[]string{"#", "allocation", "resource provider", "inventory used/capacity"}, rows))
		},
	}
	cmd.Flags().StringArrayVar(&resources, "resource", nil,
		"CLASS=AMOUNT resource requirement, may be repeated")
	cmd.Flags().StringArrayVar(&required, "required", nil,
		"Trait required on every candidate, may be repeated; comma-separated names mean any-of")
	cmd.Flags().StringArrayVar(&forbidden, "forbidden", nil,
		"Trait no candidate may have, may be repeated")
	cmd.Flags().IntVar(&limit, "limit", 0,
		"Maximum number of allocation requests to return")
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}
