package commands

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/output"
)

// renderTable prints a result table honoring the command's output flags.
func renderTable(cmd *cobra.Command, t *output.Table) error {
	ocfg, err := output.ConfigFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	return ocfg.Render(t, cmd.OutOrStdout())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// addTraitParams serializes trait filters. Comma-separated required groups
// are alternatives and each becomes its own in:-prefixed parameter; single
// required names and !-negated forbidden names collate into one parameter.
func addTraitParams(params url.Values, required, forbidden []string) {
	var plain []string
	for _, r := range required {
		if strings.Contains(r, ",") {
			params.Add("required", "in:"+r)
			continue
		}
		plain = append(plain, r)
	}
	for _, f := range forbidden {
		plain = append(plain, "!"+f)
	}
	if len(plain) > 0 {
		params.Add("required", strings.Join(plain, ","))
	}
}

// joinResourceFilters renders repeated CLASS=VALUE arguments as the
// comma-separated resources query parameter, with = swapped for :.
func joinResourceFilters(resources []string) string {
	parts := make([]string, len(resources))
	for i, r := range resources {
		parts[i] = strings.ReplaceAll(r, "=", ":")
	}
	return strings.Join(parts, ",")
}

// joinResources renders an amounts-by-class map as CLASS=N pairs in class
// order.
func joinResources(resources map[string]int64) string {
	parts := make([]string, 0, len(resources))
	for _, class := range sortedKeys(resources) {
		parts = append(parts, fmt.Sprintf("%s=%d", class, resources[class]))
	}
	return strings.Join(parts, ",")
}

// locationPath reduces a Location header to a path relative to the service
// root, so it can be fed back into the session client.
func locationPath(endpoint, location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	path := u.Path
	if base, err := url.Parse(endpoint); err == nil && base.Path != "" && base.Path != "/" {
		path = strings.TrimPrefix(path, strings.TrimRight(base.Path, "/"))
	}
	return path
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// resourcesCell widens an amounts map so table cells render it as a compact
// JSON document.
func resourcesCell(resources map[string]int64) map[string]any {
	doc := make(map[string]any, len(resources))
	for class, amount := range resources {
		doc[class] = amount
	}
	return doc
}
