package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/danmuck/placectl/internal/config"
	"github.com/danmuck/placectl/internal/testutil/placetest"
	"github.com/danmuck/placectl/internal/testutil/testlog"
)

// runCommand executes one placectl invocation against the canned API with
// the given microversion and returns what it printed. Literal versions pin
// the session without a probe; "1.0" negotiates.
func runCommand(t *testing.T, srv *placetest.Server, version string, args ...string) (string, error) {
	t.Helper()
	testlog.Start(t)
	rt := &Runtime{Config: &config.Config{
		Endpoint:    srv.URL(),
		APIVersion:  version,
		ServiceType: "placement",
	}}
	root := NewRootCommand(rt)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// decodeRows parses -o json list output.
func decodeRows(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		t.Fatalf("decode rows from %q: %v", raw, err)
	}
	return rows
}

// decodeRow parses -o json single-resource output.
func decodeRow(t *testing.T, raw string) map[string]any {
	t.Helper()
	var row map[string]any
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		t.Fatalf("decode row from %q: %v", raw, err)
	}
	return row
}

// findRequest returns the first recorded call matching method and path.
func findRequest(t *testing.T, srv *placetest.Server, method, path string) placetest.Request {
	t.Helper()
	for _, req := range srv.Requests() {
		if req.Method == method && req.Path == path {
			return req
		}
	}
	t.Fatalf("no %s %s among %d recorded requests", method, path, len(srv.Requests()))
	return placetest.Request{}
}
