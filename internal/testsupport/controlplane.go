package testsupport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"mcpanel/internal/controlplane"
)

// Control-plane routes recognised by FakeControlPlane.
const (
	RouteStatus = "status"
	RouteStart  = "start"
	RouteStop   = "stop"
)

// Response scripts one reply from FakeControlPlane.
type Response struct {
	Status     int
	Body       string
	RetryAfter string
	Location   string
	// Gate, when set, holds the reply until the channel is closed.
	Gate chan struct{}
}

// RecordedRequest is one request received by FakeControlPlane.
type RecordedRequest struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

// FakeControlPlane is an httptest server that answers start, stop, and status
// calls from per-route queues. When a queue is empty the route default is
// used.
type FakeControlPlane struct {
	Server *httptest.Server

	mu       sync.Mutex
	queues   map[string][]Response
	defaults map[string]Response
	requests []RecordedRequest
}

// NewControlPlane starts a fake control plane closed at test cleanup.
func NewControlPlane(t testing.TB) *FakeControlPlane {
	t.Helper()
	f := &FakeControlPlane{
		queues: make(map[string][]Response),
		defaults: map[string]Response{
			RouteStatus: {Status: http.StatusOK, Body: `{"taskStatus":"STOPPED"}`},
			RouteStart:  {Status: http.StatusAccepted, Body: `{"taskStatus":"PROVISIONING"}`, RetryAfter: "5"},
			RouteStop:   {Status: http.StatusAccepted, Body: `{"taskStatus":"STOPPING"}`, RetryAfter: "5"},
		},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL to configure as control_plane.base_url.
func (f *FakeControlPlane) URL() string {
	return f.Server.URL
}

// Client builds a control-plane client pointed at the fake.
func (f *FakeControlPlane) Client(t testing.TB) *controlplane.Client {
	t.Helper()
	client, err := controlplane.New(controlplane.Config{BaseURL: f.Server.URL, TimeoutSeconds: 5})
	if err != nil {
		t.Fatalf("controlplane.New: %v", err)
	}
	return client
}

// Enqueue appends scripted replies for route.
func (f *FakeControlPlane) Enqueue(route string, responses ...Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[route] = append(f.queues[route], responses...)
}

// SetDefault replaces the reply used when route's queue is empty.
func (f *FakeControlPlane) SetDefault(route string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaults[route] = resp
}

// Requests returns the requests received on route.
func (f *FakeControlPlane) Requests(route string) []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RecordedRequest
	for _, req := range f.requests {
		if routeOf(req.Method, req.Path) == route {
			out = append(out, req)
		}
	}
	return out
}

// Count returns the number of requests received on route.
func (f *FakeControlPlane) Count(route string) int {
	return len(f.Requests(route))
}

func (f *FakeControlPlane) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	route := routeOf(r.Method, r.URL.Path)

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   string(body),
		Header: r.Header.Clone(),
	})
	resp := f.defaults[route]
	if queue := f.queues[route]; len(queue) > 0 {
		resp = queue[0]
		f.queues[route] = queue[1:]
	}
	f.mu.Unlock()

	if resp.Gate != nil {
		select {
		case <-resp.Gate:
		case <-r.Context().Done():
			return
		}
	}
	if resp.RetryAfter != "" {
		w.Header().Set("Retry-After", resp.RetryAfter)
	}
	if resp.Location != "" {
		w.Header().Set("Location", resp.Location)
	}
	if resp.Body != "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp.Body)
}

func routeOf(method, path string) string {
	if method == http.MethodPost {
		switch {
		case strings.HasSuffix(path, "/start"):
			return RouteStart
		case strings.HasSuffix(path, "/stop"):
			return RouteStop
		}
	}
	return RouteStatus
}
