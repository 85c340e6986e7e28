package placement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/danmuck/placectl/internal/microversion"
	"github.com/danmuck/placectl/internal/testutil/testlog"
)

type countingDoer struct {
	calls int
}

func (d *countingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	return nil, fmt.Errorf("unexpected network call %d", d.calls)
}

func TestNewClientLiteralVersionSkipsProbe(t *testing.T) {
	testlog.Start(t)
	doer := &countingDoer{}
	c, err := NewClient(context.Background(), ClientConfig{
		Endpoint:    "http://placement.test",
		APIVersion:  "1.23",
		ServiceType: "placement",
		HTTP:        doer,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.APIVersion() != "1.23" {
		t.Fatalf("api version: got %s, want 1.23", c.APIVersion())
	}
	if doer.calls != 0 {
		t.Fatalf("expected no network calls, got %d", doer.calls)
	}
}

func TestNegotiationKeepsBidWhenServerAccepts(t *testing.T) {
	testlog.Start(t)
	var (
		calls   int
		gotVers string
		gotAcc  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotVers = r.Header.Get("OpenStack-API-Version")
		gotAcc = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), ClientConfig{
		Endpoint:   srv.URL,
		APIVersion: "1",
		HTTP:       srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.APIVersion() != microversion.MaxNoGap {
		t.Fatalf("api version: got %s, want %s", c.APIVersion(), microversion.MaxNoGap)
	}
	if calls != 1 {
		t.Fatalf("expected one probe, got %d", calls)
	}
	if gotVers != "placement "+microversion.MaxNoGap {
		t.Fatalf("probe version header: got %q", gotVers)
	}
	if gotAcc != "application/json" {
		t.Fatalf("probe accept header: got %q", gotAcc)
	}
}

func TestNegotiationAdoptsServerMaxOn406(t *testing.T) {
	testlog.Start(t)
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotAcceptable)
		fmt.Fprint(w, `{"errors": [{"status": 406, "title": "Not Acceptable",
			"min_version": "1.0", "max_version": "1.10"}]}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), ClientConfig{
		Endpoint:   srv.URL,
		APIVersion: "1",
		HTTP:       srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.APIVersion() != "1.10" {
		t.Fatalf("api version: got %s, want 1.10", c.APIVersion())
	}
	if calls != 1 {
		t.Fatalf("expected one probe, got %d", calls)
	}
}

func TestNegotiationBidStopsAtKnownGap(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), ClientConfig{
		Endpoint:      srv.URL,
		APIVersion:    "1.0",
		HTTP:          srv.Client(),
		KnownVersions: []string{"1.10", "1.11", "1.12", "1.14", "1.15"},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.APIVersion() != "1.12" {
		t.Fatalf("api version: got %s, want 1.12", c.APIVersion())
	}
}

func TestNegotiationOfflineUsesBid(t *testing.T) {
	testlog.Start(t)
	c, err := NewClient(context.Background(), ClientConfig{APIVersion: "1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.APIVersion() != microversion.MaxNoGap {
		t.Fatalf("api version: got %s, want %s", c.APIVersion(), microversion.MaxNoGap)
	}
	if _, err := c.Request(context.Background(), http.MethodGet, "/resource_providers", nil); err == nil {
		t.Fatalf("expected offline request to fail")
	}
}

func TestNegotiationTransportErrorPropagates(t *testing.T) {
	testlog.Start(t)
	doer := &countingDoer{}
	_, err := NewClient(context.Background(), ClientConfig{
		Endpoint:   "http://placement.test",
		APIVersion: "1",
		HTTP:       doer,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if doer.calls != 1 {
		t.Fatalf("expected one probe attempt, got %d", doer.calls)
	}
}

func TestNegotiation406WithoutMaxVersionFails(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotAcceptable)
		fmt.Fprint(w, `{"errors": []}`)
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), ClientConfig{
		Endpoint:   srv.URL,
		APIVersion: "1",
		HTTP:       srv.Client(),
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewClientRequiresEndpointWithTransport(t *testing.T) {
	testlog.Start(t)
	_, err := NewClient(context.Background(), ClientConfig{
		APIVersion: "1.5",
		HTTP:       &countingDoer{},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRequestSendsSessionHeaders(t *testing.T) {
	testlog.Start(t)
	type captured struct {
		method  string
		path    string
		query   url.Values
		headers http.Header
		body    []byte
	}
	var got captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		got = captured{
			method:  r.Method,
			path:    r.URL.Path,
			query:   r.URL.Query(),
			headers: r.Header.Clone(),
			body:    body,
		}
		fmt.Fprint(w, `{"ok": true}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), ClientConfig{
		Endpoint:   srv.URL,
		APIVersion: "1.5",
		Token:      "seekrit",
		HTTP:       srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	params := url.Values{}
	params.Set("name", "compute-0")
	resp, err := c.Request(context.Background(), http.MethodPost, "/resource_providers", &RequestOptions{
		JSON:   map[string]string{"name": "compute-0"},
		Params: params,
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("status: got %d", resp.Status)
	}
	if got.method != http.MethodPost || got.path != "/resource_providers" {
		t.Fatalf("request target: got %s %s", got.method, got.path)
	}
	if got.query.Get("name") != "compute-0" {
		t.Fatalf("query: got %v", got.query)
	}
	if v := got.headers.Get("OpenStack-API-Version"); v != "placement 1.5" {
		t.Fatalf("version header: got %q", v)
	}
	if v := got.headers.Get("Accept"); v != "application/json" {
		t.Fatalf("accept header: got %q", v)
	}
	if v := got.headers.Get("Content-Type"); v != "application/json" {
		t.Fatalf("content type: got %q", v)
	}
	if v := got.headers.Get("X-Auth-Token"); v != "seekrit" {
		t.Fatalf("token header: got %q", v)
	}
	var sent map[string]string
	if err := json.Unmarshal(got.body, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent["name"] != "compute-0" {
		t.Fatalf("body: got %v", sent)
	}
}

func TestRequestPerCallVersionOverride(t *testing.T) {
	testlog.Start(t)
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("OpenStack-API-Version")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), ClientConfig{
		Endpoint:   srv.URL,
		APIVersion: "1.9",
		HTTP:       srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Request(context.Background(), http.MethodGet, "/traits", &RequestOptions{Version: "1.6"}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if header != "placement 1.6" {
		t.Fatalf("version header: got %q", header)
	}
}

func TestRequestMapsErrorDetailLastLine(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errors": [{"status": 404,
			"detail": "The resource could not be found.\n\nNo resource provider with uuid 123 found for delete"}]}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), ClientConfig{
		Endpoint:   srv.URL,
		APIVersion: "1.5",
		HTTP:       srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.Request(context.Background(), http.MethodDelete, "/resource_providers/123", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	apiErr, ok := err.(APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T (%v)", err, err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Fatalf("status: got %d", apiErr.Status)
	}
	if apiErr.Detail != "No resource provider with uuid 123 found for delete" {
		t.Fatalf("detail: got %q", apiErr.Detail)
	}
	want := "No resource provider with uuid 123 found for delete (HTTP 404)"
	if apiErr.Error() != want {
		t.Fatalf("message: got %q, want %q", apiErr.Error(), want)
	}
}

func TestRequestErrorWithoutBodyUsesStatusText(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), ClientConfig{
		Endpoint:   srv.URL,
		APIVersion: "1.5",
		HTTP:       srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.Request(context.Background(), http.MethodGet, "/resource_providers", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "Internal Server Error (HTTP 500)" {
		t.Fatalf("message: got %q", got)
	}
}

func TestResponseJSONDecodes(t *testing.T) {
	testlog.Start(t)
	resp := &Response{Status: http.StatusOK, Body: []byte(`{"generation": 7}`)}
	var out struct {
		Generation int `json:"generation"`
	}
	if err := resp.JSON(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Generation != 7 {
		t.Fatalf("generation: got %d", out.Generation)
	}
	empty := &Response{Status: http.StatusNoContent}
	if err := empty.JSON(&out); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestCheckVersionUsesSessionVersion(t *testing.T) {
	testlog.Start(t)
	c, err := NewClient(context.Background(), ClientConfig{APIVersion: "1.4"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.CheckVersion(microversion.Ge("1.4")); err != nil {
		t.Fatalf("check: %v", err)
	}
	err = c.CheckVersion(microversion.Ge("1.14"))
	if err == nil {
		t.Fatalf("expected error")
	}
	want := "Operation or argument is not supported with version 1.4; requires at least version 1.14"
	if err.Error() != want {
		t.Fatalf("message: got %q, want %q", err.Error(), want)
	}
	ok, err := c.AllowsVersion(microversion.Ge("1.14"))
	if err != nil {
		t.Fatalf("allows: %v", err)
	}
	if ok {
		t.Fatalf("expected not allowed")
	}
}
