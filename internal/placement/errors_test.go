package placement

import (
	"net/http"
	"testing"

	"github.com/danmuck/placectl/internal/testutil/testlog"
)

func TestNewAPIErrorExtractsLastDetailLine(t *testing.T) {
	testlog.Start(t)
	body := []byte(`{"errors": [{"status": 409,
		"detail": "There was a conflict.\n\nupdate conflict: consumer generation 3 does not match 2"}]}`)
	err := newAPIError(http.StatusConflict, body)
	if err.Detail != "update conflict: consumer generation 3 does not match 2" {
		t.Fatalf("detail: got %q", err.Detail)
	}
	if err.Error() != "update conflict: consumer generation 3 does not match 2 (HTTP 409)" {
		t.Fatalf("message: got %q", err.Error())
	}
}

func TestNewAPIErrorSingleLineDetail(t *testing.T) {
	testlog.Start(t)
	body := []byte(`{"errors": [{"status": 400, "detail": "JSON does not validate"}]}`)
	err := newAPIError(http.StatusBadRequest, body)
	if err.Detail != "JSON does not validate" {
		t.Fatalf("detail: got %q", err.Detail)
	}
}

func TestNewAPIErrorFallsBackToStatusText(t *testing.T) {
	testlog.Start(t)
	cases := [][]byte{nil, []byte(``), []byte(`not json`), []byte(`{"errors": []}`)}
	for _, body := range cases {
		err := newAPIError(http.StatusServiceUnavailable, body)
		if err.Detail != "Service Unavailable" {
			t.Fatalf("detail for %q: got %q", body, err.Detail)
		}
	}
}
