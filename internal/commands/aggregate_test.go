package commands

import (
	"encoding/json"
	"net/http"
	"reflect"
	"testing"

	"github.com/danmuck/placectl/internal/testutil/placetest"
)

func TestAggregateListGatedBelow11(t *testing.T) {
	srv := placetest.New(t)
	_, err := runCommand(t, srv, "0.9", "provider", "aggregate", "list", "p1")
	if err == nil {
		t.Fatalf("expected error")
	}
	want := "Operation or argument is not supported with version 0.9; requires at least version 1.1"
	if err.Error() != want {
		t.Fatalf("message: got %q, want %q", err.Error(), want)
	}
}

func TestAggregateList(t *testing.T) {
	srv := placetest.New(t)
	srv.AddProvider("p1", "alpha")
	srv.SetAggregates("p1", "agg-2", "agg-1")

	out, err := runCommand(t, srv, "1.1", "provider", "aggregate", "list", "p1", "-o", "json")
	if err != nil {
		t.Fatalf("aggregate list: %v", err)
	}
	rows := decodeRows(t, out)
	if len(rows) != 2 || rows[0]["uuid"] != "agg-1" || rows[1]["uuid"] != "agg-2" {
		t.Fatalf("rows: %v", rows)
	}
}

func TestAggregateSetPlainListPayloadBelow119(t *testing.T) {
	srv := placetest.New(t)
	srv.AddProvider("p1", "alpha")

	_, err := runCommand(t, srv, "1.10", "provider", "aggregate", "set", "p1",
		"--aggregate", "agg-1", "--aggregate", "agg-2")
	if err != nil {
		t.Fatalf("aggregate set: %v", err)
	}
	req := findRequest(t, srv, http.MethodPut, "/resource_providers/p1/aggregates")
	var aggs []string
	if err := json.Unmarshal(req.Body, &aggs); err != nil {
		t.Fatalf("payload must be a bare list below 1.19: %s (%v)", req.Body, err)
	}
	if !reflect.DeepEqual(aggs, []string{"agg-1", "agg-2"}) {
		t.Fatalf("payload: %v", aggs)
	}
	if !reflect.DeepEqual(srv.Aggregates("p1"), []string{"agg-1", "agg-2"}) {
		t.Fatalf("stored aggregates: %v", srv.Aggregates("p1"))
	}
}

func TestAggregateSetGenerationMandatoryFrom119(t *testing.T) {
	srv := placetest.New(t)
	srv.AddProvider("p1", "alpha")

	_, err := runCommand(t, srv, "1.19", "provider", "aggregate", "set", "p1",
		"--aggregate", "agg-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "A generation must be specified." {
		t.Fatalf("message: got %q", err.Error())
	}
	if len(srv.Requests()) != 0 {
		t.Fatalf("required-ness gate must fire before any network call")
	}

	_, err = runCommand(t, srv, "1.19", "provider", "aggregate", "set", "p1",
		"--aggregate", "agg-1", "--generation", "0")
	if err != nil {
		t.Fatalf("aggregate set with generation: %v", err)
	}
	req := findRequest(t, srv, http.MethodPut, "/resource_providers/p1/aggregates")
	var body struct {
		Aggregates []string `json:"aggregates"`
		Generation *int64   `json:"resource_provider_generation"`
	}
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if body.Generation == nil || *body.Generation != 0 {
		t.Fatalf("payload generation: %+v", body.Generation)
	}
	if !reflect.DeepEqual(srv.Aggregates("p1"), []string{"agg-1"}) {
		t.Fatalf("stored aggregates: %v", srv.Aggregates("p1"))
	}
}

func TestAggregateSetGenerationFlagGatedBelow119(t *testing.T) {
	srv := placetest.New(t)
	_, err := runCommand(t, srv, "1.10", "provider", "aggregate", "set", "p1",
		"--aggregate", "agg-1", "--generation", "0")
	if err == nil {
		t.Fatalf("expected error")
	}
	want := "Operation or argument is not supported with version 1.10; requires at least version 1.19"
	if err.Error() != want {
		t.Fatalf("message: got %q, want %q", err.Error(), want)
	}
}

func TestAggregateSetEmptyDissociates(t *testing.T) {
	srv := placetest.New(t)
	srv.AddProvider("p1", "alpha")
	srv.SetAggregates("p1", "agg-1")

	_, err := runCommand(t, srv, "1.10", "provider", "aggregate", "set", "p1")
	if err != nil {
		t.Fatalf("aggregate set: %v", err)
	}
	if got := srv.Aggregates("p1"); len(got) != 0 {
		t.Fatalf("aggregates after dissociation: %v", got)
	}
}
