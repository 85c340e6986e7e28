// Package placement provides the HTTP session client for the placement
// service: microversion negotiation, request dispatch and error mapping.
package placement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logs "github.com/danmuck/placectl/internal/logging"
	"github.com/danmuck/placectl/internal/microversion"
)

// Doer issues one HTTP request. *http.Client satisfies it; tests substitute
// recorders.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// ClientConfig carries everything needed to construct a Client.
type ClientConfig struct {
	// Endpoint is the service root URL.
	Endpoint string
	// APIVersion is the requested microversion. "1" and "1.0" mean "newest
	// version both sides support" and trigger negotiation.
	APIVersion string
	// ServiceType prefixes the version header value.
	ServiceType string
	// Token, when set, is sent as X-Auth-Token on every request.
	Token string
	// HTTP performs requests. A nil value keeps the client offline:
	// negotiation is skipped and requests fail.
	HTTP Doer
	// KnownVersions overrides the list the negotiation bid is picked from.
	// Defaults to microversion.Supported.
	KnownVersions []string
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		APIVersion:  "1.0",
		ServiceType: "placement",
		HTTP:        &http.Client{Timeout: 30 * time.Second},
	}
}

// Client is a placement API session pinned to one microversion. The version
// is resolved once in NewClient and never changes afterwards, so a Client is
// safe for concurrent readers.
type Client struct {
	endpoint    string
	serviceType string
	token       string
	http        Doer
	apiVersion  string
}

// NewClient builds a session client and resolves its microversion. A
// negotiable requested version costs at most one probe request; a literal
// one costs none.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.ServiceType == "" {
		cfg.ServiceType = "placement"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "1.0"
	}
	if cfg.HTTP != nil && cfg.Endpoint == "" {
		return nil, fmt.Errorf("placement: endpoint required")
	}
	known := cfg.KnownVersions
	if known == nil {
		known = microversion.Supported
	}
	c := &Client{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		serviceType: cfg.ServiceType,
		token:       cfg.Token,
		http:        cfg.HTTP,
	}
	if err := c.negotiate(ctx, cfg.APIVersion, known); err != nil {
		return nil, err
	}
	logs.Debugf("placement.NewClient endpoint=%q api_version=%s", c.endpoint, c.apiVersion)
	return c, nil
}

// negotiate resolves the session version. The bid is the newest gap-free
// known version; a 406 from the server downgrades to the server's maximum.
// Any other probe status keeps the bid.
func (c *Client) negotiate(ctx context.Context, requested string, known []string) error {
	if !microversion.Negotiable(requested) {
		c.apiVersion = requested
		return nil
	}
	bid, err := microversion.MaxWithoutGap(known)
	if err != nil {
		return err
	}
	c.apiVersion = bid
	if c.http == nil {
		logs.Debugf("placement.negotiate offline api_version=%s", bid)
		return nil
	}
	resp, err := c.do(ctx, http.MethodGet, "/", "", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNotAcceptable {
		return nil
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return fmt.Errorf("placement: parse negotiation response: %w", err)
	}
	if len(eb.Errors) == 0 || eb.Errors[0].MaxVersion == "" {
		return fmt.Errorf("placement: negotiation response missing max_version")
	}
	c.apiVersion = eb.Errors[0].MaxVersion
	logs.Debugf("placement.negotiate version %s not supported in server, falling back to %s",
		bid, c.apiVersion)
	return nil
}

// APIVersion returns the microversion every request of this session speaks.
func (c *Client) APIVersion() string {
	return c.apiVersion
}

// Endpoint returns the service root URL the client was built with.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// CheckVersion errors unless the session version satisfies every requirement.
func (c *Client) CheckVersion(reqs ...microversion.Requirement) error {
	return microversion.Check(c.apiVersion, reqs...)
}

// AllowsVersion reports whether the session version satisfies every
// requirement; a mere mismatch is not an error.
func (c *Client) AllowsVersion(reqs ...microversion.Requirement) (bool, error) {
	return microversion.Satisfies(c.apiVersion, reqs...)
}

// RequestOptions customizes one request.
type RequestOptions struct {
	// JSON, when non-nil, is marshaled as the request body.
	JSON any
	// Params appends query parameters to the URL.
	Params url.Values
	// Version overrides the session microversion for this request only.
	Version string
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON unmarshals the response body.
func (r *Response) JSON(out any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("placement: empty response body")
	}
	return json.Unmarshal(r.Body, out)
}

// Request performs one API call. Statuses at or above 400 come back as an
// APIError carrying the detail from the service error body.
func (c *Client) Request(ctx context.Context, method, path string, opts *RequestOptions) (*Response, error) {
	var (
		payload any
		params  url.Values
		version string
	)
	if opts != nil {
		payload = opts.JSON
		params = opts.Params
		version = opts.Version
	}
	resp, err := c.do(ctx, method, path, version, params, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		apiErr := newAPIError(resp.StatusCode, body)
		logs.Debugf("placement.Request %s %s status=%d detail=%q", method, path, apiErr.Status, apiErr.Detail)
		return nil, apiErr
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// do issues the raw request without inspecting the response status.
func (c *Client) do(ctx context.Context, method, path, version string, params url.Values, payload any) (*http.Response, error) {
	if c.http == nil {
		return nil, fmt.Errorf("placement: no transport configured")
	}
	target := c.endpoint + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("placement: encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if version == "" {
		version = c.apiVersion
	}
	req.Header.Set("OpenStack-API-Version", c.serviceType+" "+version)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}
	return c.http.Do(req)
}
