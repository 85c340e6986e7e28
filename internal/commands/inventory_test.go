package commands

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danmuck/placectl/internal/testutil/placetest"
)

func TestInventorySetReplacesWholeInventory(t *testing.T) {
	srv := placetest.New(t)
	srv.AddProvider("p1", "alpha")
	srv.SetInventory("p1", "DISK_GB", placetest.Inventory{Total: 100})

	_, err := runCommand(t, srv, "1.7", "provider", "inventory", "set", "p1",
		"--resource", "VCPU=8", "--resource", "MEMORY_MB=1024")
	if err != nil {
		t.Fatalf("inventory set: %v", err)
	}
	stored := srv.Inventories("p1")
	if stored["VCPU"].Total != 8 || stored["MEMORY_MB"].Total != 1024 {
		t.Fatalf("stored inventories: %+v", stored)
	}
	if _, ok := stored["DISK_GB"]; ok {
		t.Fatalf("replace must drop records not in the new set: %+v", stored)
	}
}

func TestInventorySetAmendKeepsExistingFields(t *testing.T) {
	srv := placetest.New(t)
	srv.AddProvider("p1", "alpha")
	srv.SetInventory("p1", "VCPU", placetest.Inventory{Total: 8, MaxUnit: 4})

	_, err := runCommand(t, srv, "1.7", "provider", "inventory", "set", "p1",
		"--amend", "--resource", "VCPU:reserved=2")
	if err != nil {
		t.Fatalf("inventory set --amend: %v", err)
	}
	stored := srv.Inventories("p1")["VCPU"]
	if stored.Total != 8 || stored.MaxUnit != 4 || stored.Reserved != 2 {
		t.Fatalf("amended record: %+v", stored)
	}
}

func TestInventorySetDryRunWritesNothing(t *testing.T) {
	srv := placetest.New(t)
	srv.AddProvider("p1", "alpha")

	out, err := runCommand(t, srv, "1.7", "provider", "inventory", "set", "p1",
		"--dry-run", "--resource", "VCPU=8", "-o", "json")
	if err != nil {
		t.Fatalf("inventory set --dry-run: %v", err)
	}
	if len(srv.Inventories("p1")) != 0 {
		t.Fatalf("dry run must not store inventory: %+v", srv.Inventories("p1"))
	}
	for _, req := range srv.Requests() {
		if req.Method == http.MethodPut {
			t.Fatalf("dry run must not PUT")
		}
	}
	rows := decodeRows(t, out)
	if len(rows) != 1 || rows[0]["resource_class"] != "VCPU" {
		t.Fatalf("dry run rows: %v", rows)
	}
}

// An aggregate-wide set keeps going past a failing member and reports the
// failure count; members that already succeeded stay written.
func TestInventorySetAggregateContinuesPastFailure(t *testing.T) {
	srv := placetest.New(t)
	p1 := srv.AddProvider("", "one")
	p2 := srv.AddProvider("", "two")
	p3 := srv.AddProvider("", "three")
	for _, p := range []string{p1, p2, p3} {
		srv.SetAggregates(p, "agg-1")
	}
	srv.FailInventoryPut(p2, http.StatusConflict, "resource provider generation conflict")

	_, err := runCommand(t, srv, "1.3", "provider", "inventory", "set", "agg-1",
		"--aggregate", "--resource", "VCPU=4")
	if err == nil {
		t.Fatalf("expected aggregate failure")
	}
	want := "Failed to set inventory for 1 of 3 resource providers."
	if err.Error() != want {
		t.Fatalf("message: got %q, want %q", err.Error(), want)
	}
	if srv.Inventories(p1)["VCPU"].Total != 4 {
		t.Fatalf("first member must keep its new inventory: %+v", srv.Inventories(p1))
	}
	if srv.Inventories(p3)["VCPU"].Total != 4 {
		t.Fatalf("last member must keep its new inventory: %+v", srv.Inventories(p3))
	}
	if len(srv.Inventories(p2)) != 0 {
		t.Fatalf("failed member must stay untouched: %+v", srv.Inventories(p2))
	}
}

func TestInventorySetAggregateGatedBelow13(t *testing.T) {
	srv := placetest.New(t)
	_, err := runCommand(t, srv, "1.2", "provider", "inventory", "set", "agg-1",
		"--aggregate", "--resource", "VCPU=4")
	if err == nil {
		t.Fatalf("expected error")
	}
	want := "Operation or argument is not supported with version 1.2; requires at least version 1.3"
	if err.Error() != want {
		t.Fatalf("message: got %q, want %q", err.Error(), want)
	}
}

func TestInventorySetAggregateEmptyAggregate(t *testing.T) {
	srv := placetest.New(t)
	_, err := runCommand(t, srv, "1.3", "provider", "inventory", "set", "agg-1",
		"--aggregate", "--resource", "VCPU=4")
	if err == nil {
		t.Fatalf("expected error")
	}
	want := "No resource providers found in aggregate with uuid agg-1."
	if err.Error() != want {
		t.Fatalf("message: got %q, want %q", err.Error(), want)
	}
}

func TestInventoryDeleteWholeProviderNeeds15(t *testing.T) {
	srv := placetest.New(t)
	srv.AddProvider("p1", "alpha")
	srv.SetInventory("p1", "VCPU", placetest.Inventory{Total: 8})

	_, err := runCommand(t, srv, "1.4", "provider", "inventory", "delete", "p1")
	if err == nil {
		t.Fatalf("expected error")
	}
	want := "Operation or argument is not supported with version 1.4; requires at least version 1.5"
	if err.Error() != want {
		t.Fatalf("message: got %q, want %q", err.Error(), want)
	}

	if _, err := runCommand(t, srv, "1.5", "provider", "inventory", "delete", "p1"); err != nil {
		t.Fatalf("inventory delete at 1.5: %v", err)
	}
	if len(srv.Inventories("p1")) != 0 {
		t.Fatalf("inventories after delete: %+v", srv.Inventories("p1"))
	}
}

func TestInventoryDeleteSingleClassWorksBelow15(t *testing.T) {
	srv := placetest.New(t)
	srv.AddProvider("p1", "alpha")
	srv.SetInventory("p1", "VCPU", placetest.Inventory{Total: 8})
	srv.SetInventory("p1", "DISK_GB", placetest.Inventory{Total: 100})

	_, err := runCommand(t, srv, "1.4", "provider", "inventory", "delete", "p1",
		"--resource-class", "VCPU")
	if err != nil {
		t.Fatalf("inventory delete --resource-class: %v", err)
	}
	stored := srv.Inventories("p1")
	if _, ok := stored["VCPU"]; ok {
		t.Fatalf("VCPU record must be gone: %+v", stored)
	}
	if _, ok := stored["DISK_GB"]; !ok {
		t.Fatalf("DISK_GB record must survive: %+v", stored)
	}
}

func TestInventoryClassSetSendsOnlyChangedFields(t *testing.T) {
	srv := placetest.New(t)
	srv.AddProvider("p1", "alpha")

	_, err := runCommand(t, srv, "1.7", "provider", "inventory", "class", "set",
		"p1", "VCPU", "--total", "8", "--reserved", "2")
	if err != nil {
		t.Fatalf("inventory class set: %v", err)
	}
	req := findRequest(t, srv, http.MethodPut, "/resource_providers/p1/inventories/VCPU")
	var payload map[string]any
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["total"] != float64(8) || payload["reserved"] != float64(2) {
		t.Fatalf("payload: %v", payload)
	}
	if _, ok := payload["min_unit"]; ok {
		t.Fatalf("untouched fields must stay out of the payload: %v", payload)
	}
	if _, ok := payload["resource_provider_generation"]; !ok {
		t.Fatalf("payload must carry the provider generation: %v", payload)
	}
}

func TestParseResourceArgument(t *testing.T) {
	cases := []struct {
		in      string
		class   string
		field   string
		wantErr bool
	}{
		{"VCPU=8", "VCPU", "total", false},
		{"VCPU:reserved=2", "VCPU", "reserved", false},
		{"VCPU:allocation_ratio=1.5", "VCPU", "allocation_ratio", false},
		{"VCPU", "", "", true},
		{"VCPU:a:b=1", "", "", true},
		{"VCPU:bogus=1", "", "", true},
		{"=8", "", "", true},
		{"VCPU:total=x", "", "", true},
	}
	for _, tc := range cases {
		got, err := parseResourceArgument(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got.class != tc.class || got.field != tc.field {
			t.Fatalf("%q: got %+v", tc.in, got)
		}
	}
}
