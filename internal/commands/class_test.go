package commands

import (
	"errors"
	"net/http"
	"testing"

	"github.com/danmuck/placectl/internal/placement"
	"github.com/danmuck/placectl/internal/testutil/placetest"
)

func TestClassOperationsGatedBelow12(t *testing.T) {
	srv := placetest.New(t)
	want := "Operation or argument is not supported with version 1.1; requires at least version 1.2"
	cases := [][]string{
		{"class", "list"},
		{"class", "show", "CUSTOM_GOLD"},
		{"class", "create", "CUSTOM_GOLD"},
		{"class", "delete", "CUSTOM_GOLD"},
	}
	for _, args := range cases {
		_, err := runCommand(t, srv, "1.1", args...)
		if err == nil || err.Error() != want {
			t.Fatalf("args %v: got %v, want %q", args, err, want)
		}
	}
}

func TestClassListAndShow(t *testing.T) {
	srv := placetest.New(t)
	srv.AddClasses("VCPU", "CUSTOM_GOLD")

	out, err := runCommand(t, srv, "1.2", "class", "list", "-o", "json")
	if err != nil {
		t.Fatalf("class list: %v", err)
	}
	rows := decodeRows(t, out)
	if len(rows) != 2 {
		t.Fatalf("rows: %v", rows)
	}

	out, err = runCommand(t, srv, "1.2", "class", "show", "CUSTOM_GOLD", "-o", "json")
	if err != nil {
		t.Fatalf("class show: %v", err)
	}
	if row := decodeRow(t, out); row["name"] != "CUSTOM_GOLD" {
		t.Fatalf("row: %v", row)
	}
}

func TestClassCreateConflictSurfacesDetail(t *testing.T) {
	srv := placetest.New(t)
	srv.AddClasses("CUSTOM_GOLD")

	_, err := runCommand(t, srv, "1.2", "class", "create", "CUSTOM_GOLD")
	var apiErr placement.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", apiErr.Status)
	}
	if apiErr.Detail != "Conflicting resource class already exists: CUSTOM_GOLD" {
		t.Fatalf("detail: got %q", apiErr.Detail)
	}
}

func TestClassSetNeeds17(t *testing.T) {
	srv := placetest.New(t)

	_, err := runCommand(t, srv, "1.6", "class", "set", "CUSTOM_GOLD")
	if err == nil {
		t.Fatalf("expected error")
	}
	want := "Operation or argument is not supported with version 1.6; requires at least version 1.7"
	if err.Error() != want {
		t.Fatalf("message: got %q, want %q", err.Error(), want)
	}

	if _, err := runCommand(t, srv, "1.7", "class", "set", "CUSTOM_GOLD"); err != nil {
		t.Fatalf("class set: %v", err)
	}
	// Idempotent: a second set of the same class succeeds.
	if _, err := runCommand(t, srv, "1.7", "class", "set", "CUSTOM_GOLD"); err != nil {
		t.Fatalf("class set again: %v", err)
	}
	classes := srv.Classes()
	if len(classes) != 1 || classes[0] != "CUSTOM_GOLD" {
		t.Fatalf("classes: %v", classes)
	}
}

func TestClassDelete(t *testing.T) {
	srv := placetest.New(t)
	srv.AddClasses("CUSTOM_GOLD")

	if _, err := runCommand(t, srv, "1.2", "class", "delete", "CUSTOM_GOLD"); err != nil {
		t.Fatalf("class delete: %v", err)
	}
	if got := srv.Classes(); len(got) != 0 {
		t.Fatalf("classes after delete: %v", got)
	}
}
