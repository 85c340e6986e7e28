// Package placetest runs an in-memory placement API on an httptest server.
// It keeps just enough state for CLI round trips and records every request
// it serves so tests can assert on headers, queries and payload shapes.
package placetest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/danmuck/placectl/internal/microversion"
)

// Request is one recorded API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Provider is the stored resource provider state.
type Provider struct {
	UUID       string
	Name       string
	Generation int64
	Parent     string
}

// Inventory is one resource class inventory record.
type Inventory struct {
	AllocationRatio float64 `json:"allocation_ratio"`
	MinUnit         int64   `json:"min_unit"`
	MaxUnit         int64   `json:"max_unit"`
	Reserved        int64   `json:"reserved"`
	StepSize        int64   `json:"step_size"`
	Total           int64   `json:"total"`
}

// AllocationRecord is the stored consumer state.
type AllocationRecord struct {
	Allocations map[string]map[string]int64
	ProjectID   string
	UserID      string
	Generation  int64
}

type putFailure struct {
	status int
	detail string
}

// Server is the canned placement API. All exported methods are safe for
// concurrent use with in-flight requests.
type Server struct {
	mu          sync.Mutex
	maxVersion  string
	providers   map[string]*Provider
	inventories map[string]map[string]Inventory
	aggregates  map[string][]string
	traits      []string
	rpTraits    map[string][]string
	classes     []string
	consumers   map[string]*AllocationRecord
	usages      map[string]map[string]int64

	inventoryPutFailures map[string]putFailure

	requests []Request

	engine *gin.Engine
	server *httptest.Server
}

// New starts the API and registers its shutdown with the test cleanup.
func New(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		providers:            map[string]*Provider{},
		inventories:          map[string]map[string]Inventory{},
		aggregates:           map[string][]string{},
		rpTraits:             map[string][]string{},
		consumers:            map[string]*AllocationRecord{},
		usages:               map[string]map[string]int64{},
		inventoryPutFailures: map[string]putFailure{},
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.record)
	r.Use(s.gateVersion)
	s.engine = r
	s.registerRoutes()

	s.server = httptest.NewServer(r)
	t.Cleanup(s.server.Close)
	return s
}

// URL is the base endpoint clients should dial.
func (s *Server) URL() string {
	return s.server.URL
}

// LimitVersion caps the microversion the server accepts. Requests above the
// cap are rejected with 406 and the cap is offered as max_version. Empty
// accepts anything.
func (s *Server) LimitVersion(max string) {
	s.mu.Lock()
	s.maxVersion = max
	s.mu.Unlock()
}

// AddProvider seeds a provider and returns its uuid, generating one when
// rpUUID is empty.
func (s *Server) AddProvider(rpUUID, name string) string {
	if rpUUID == "" {
		rpUUID = uuid.NewString()
	}
	s.mu.Lock()
	s.providers[rpUUID] = &Provider{UUID: rpUUID, Name: name}
	s.mu.Unlock()
	return rpUUID
}

// Provider returns a snapshot of one provider.
func (s *Server) Provider(rpUUID string) (Provider, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[rpUUID]
	if !ok {
		return Provider{}, false
	}
	return *p, true
}

// SetInventory seeds one resource class record for a provider.
func (s *Server) SetInventory(rpUUID, class string, inv Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.inventories[rpUUID]
	if m == nil {
		m = map[string]Inventory{}
		s.inventories[rpUUID] = m
	}
	m[class] = inv
}

// Inventories returns a snapshot of the stored records for one provider.
func (s *Server) Inventories(rpUUID string) map[string]Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]Inventory{}
	for class, inv := range s.inventories[rpUUID] {
		out[class] = inv
	}
	return out
}

// SetAggregates seeds the aggregate associations of a provider.
func (s *Server) SetAggregates(rpUUID string, aggs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates[rpUUID] = append([]string(nil), aggs...)
}

// Aggregates returns a snapshot of a provider's aggregate associations.
func (s *Server) Aggregates(rpUUID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.aggregates[rpUUID]...)
}

// AddTraits extends the trait catalog.
func (s *Server) AddTraits(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		if !contains(s.traits, n) {
			s.traits = append(s.traits, n)
		}
	}
}

// SetProviderTraits seeds the traits associated with a provider.
func (s *Server) SetProviderTraits(rpUUID string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpTraits[rpUUID] = append([]string(nil), names...)
}

// ProviderTraits returns a snapshot of a provider's traits.
func (s *Server) ProviderTraits(rpUUID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rpTraits[rpUUID]...)
}

// AddClasses extends the resource class catalog.
func (s *Server) AddClasses(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		if !contains(s.classes, n) {
			s.classes = append(s.classes, n)
		}
	}
}

// Classes returns a snapshot of the resource class catalog.
func (s *Server) Classes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.classes...)
}

// SetUsage seeds the consumed amount of one class on a provider.
func (s *Server) SetUsage(rpUUID, class string, used int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.usages[rpUUID]
	if m == nil {
		m = map[string]int64{}
		s.usages[rpUUID] = m
	}
	m[class] = used
}

// SetAllocations seeds the stored state of one consumer.
func (s *Server) SetAllocations(consumer string, rec AllocationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	cp.Allocations = copyAllocations(rec.Allocations)
	s.consumers[consumer] = &cp
}

// Allocations returns a snapshot of one consumer's state.
func (s *Server) Allocations(consumer string) (AllocationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.consumers[consumer]
	if !ok {
		return AllocationRecord{}, false
	}
	cp := *rec
	cp.Allocations = copyAllocations(rec.Allocations)
	return cp, true
}

// FailInventoryPut rigs inventory writes for one provider to fail with the
// given status and detail.
func (s *Server) FailInventoryPut(rpUUID string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventoryPutFailures[rpUUID] = putFailure{status: status, detail: detail}
}

// Requests returns a snapshot of every request served so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// ResetRequests clears the recorded requests.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.Query(),
		Header: c.Request.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) gateVersion(c *gin.Context) {
	s.mu.Lock()
	max := s.maxVersion
	s.mu.Unlock()
	if max == "" {
		c.Next()
		return
	}
	ceiling, err := microversion.Parse(max)
	if err != nil {
		c.Next()
		return
	}
	if requestRevision(c).Compare(ceiling) > 0 {
		c.AbortWithStatusJSON(http.StatusNotAcceptable, gin.H{
			"errors": []gin.H{{
				"status":      http.StatusNotAcceptable,
				"title":       "Not Acceptable",
				"detail":      "Unacceptable version header: " + versionHeader(c),
				"min_version": "1.0",
				"max_version": max,
			}},
		})
		return
	}
	c.Next()
}

func versionHeader(c *gin.Context) string {
	fields := strings.Fields(c.GetHeader("OpenStack-API-Version"))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// requestRevision resolves the microversion a request runs at, defaulting
// to 1.0 when the header is absent.
func requestRevision(c *gin.Context) microversion.Revision {
	rev, err := microversion.Parse(versionHeader(c))
	if err != nil {
		return microversion.Revision{Major: 1}
	}
	return rev
}

func atLeast(c *gin.Context, bound string) bool {
	rev, err := microversion.Parse(bound)
	if err != nil {
		return false
	}
	return requestRevision(c).Compare(rev) >= 0
}

// apiError writes the service error envelope the CLI knows how to unpack.
func apiError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{
		"errors": []gin.H{{
			"status": status,
			"title":  http.StatusText(status),
			"detail": detail,
		}},
	})
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

func copyAllocations(in map[string]map[string]int64) map[string]map[string]int64 {
	out := map[string]map[string]int64{}
	for rp, resources := range in {
		m := map[string]int64{}
		for class, amount := range resources {
			m[class] = amount
		}
		out[rp] = m
	}
	return out
}
