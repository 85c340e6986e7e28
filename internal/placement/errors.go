package placement

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is an error response from the service.
type APIError struct {
	Status int
	// Detail is the last line of the service error detail, or the HTTP
	// status text when the body carried none.
	Detail string
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Detail, e.Status)
}

// errorBody is the error document the service returns alongside non-2xx
// statuses. max_version only appears on 406 version rejections.
type errorBody struct {
	Errors []struct {
		Status     int    `json:"status"`
		Title      string `json:"title"`
		Detail     string `json:"detail"`
		MinVersion string `json:"min_version"`
		MaxVersion string `json:"max_version"`
	} `json:"errors"`
}

// newAPIError extracts the user-facing message from an error response. The
// detail's last line carries it; everything above is boilerplate.
func newAPIError(status int, body []byte) APIError {
	detail := http.StatusText(status)
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Errors) > 0 && eb.Errors[0].Detail != "" {
		lines := strings.Split(eb.Errors[0].Detail, "\n")
		detail = strings.TrimSpace(lines[len(lines)-1])
	}
	return APIError{Status: status, Detail: detail}
}
