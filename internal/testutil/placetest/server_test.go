package placetest

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/danmuck/placectl/internal/testutil/testlog"
)

func get(t *testing.T, url, version string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if version != "" {
		req.Header.Set("OpenStack-API-Version", "placement "+version)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestVersionCapRejectsAboveMax(t *testing.T) {
	testlog.Start(t)
	srv := New(t)
	srv.LimitVersion("1.10")

	resp, body := get(t, srv.URL()+"/", "1.22")
	if resp.StatusCode != http.StatusNotAcceptable {
		t.Fatalf("expected 406 above the cap, got %d", resp.StatusCode)
	}
	var doc struct {
		Errors []struct {
			MaxVersion string `json:"max_version"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode 406 body: %v", err)
	}
	if len(doc.Errors) != 1 || doc.Errors[0].MaxVersion != "1.10" {
		t.Fatalf("expected max_version 1.10 in the error body, got %s", body)
	}

	if resp, _ := get(t, srv.URL()+"/", "1.10"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 at the cap, got %d", resp.StatusCode)
	}
}

func TestMemberOfFilterSelectsAggregateProviders(t *testing.T) {
	testlog.Start(t)
	srv := New(t)
	a := srv.AddProvider("", "compute-a")
	b := srv.AddProvider("", "compute-b")
	srv.AddProvider("", "compute-c")
	srv.SetAggregates(a, "agg-1")
	srv.SetAggregates(b, "agg-1", "agg-2")

	resp, body := get(t, srv.URL()+"/resource_providers?member_of=agg-1", "1.3")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, body)
	}
	var doc struct {
		ResourceProviders []struct {
			Name string `json:"name"`
		} `json:"resource_providers"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(doc.ResourceProviders) != 2 {
		t.Fatalf("expected 2 members of agg-1, got %d", len(doc.ResourceProviders))
	}
	if doc.ResourceProviders[0].Name != "compute-a" || doc.ResourceProviders[1].Name != "compute-b" {
		t.Fatalf("unexpected members: %#v", doc.ResourceProviders)
	}

	reqs := srv.Requests()
	last := reqs[len(reqs)-1]
	if last.Query.Get("member_of") != "agg-1" {
		t.Fatalf("expected member_of recorded, got %v", last.Query)
	}
}
