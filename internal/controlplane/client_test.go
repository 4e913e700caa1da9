package controlplane_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mcpanel/internal/controlplane"
	"mcpanel/internal/launch"
	"mcpanel/internal/services"
)

func newClient(t *testing.T, srv *httptest.Server, mutate ...func(*controlplane.Config)) *controlplane.Client {
	t.Helper()
	cfg := controlplane.Config{BaseURL: srv.URL + "/alpha", APIKey: "k-123", TimeoutSeconds: 2}
	for _, fn := range mutate {
		fn(&cfg)
	}
	client, err := controlplane.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestStatusParsesBodyAndRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alpha/status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "k-123" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("X-Request-ID") != "rid-1" {
			t.Errorf("missing request id header, got %q", r.Header.Get("X-Request-ID"))
		}
		w.Header().Set("Retry-After", "10")
		_, _ = io.WriteString(w, `{"taskStatus":"STARTING","desiredStatus":"RUNNING","cpuMemory":{"cpu":1024,"memory":"2048"}}`)
	}))
	defer srv.Close()

	ctx := services.WithRequestID(context.Background(), "rid-1")
	res, err := newClient(t, srv).Status(ctx, "")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !res.HasPayload || res.Payload.TaskStatus != "STARTING" || res.Payload.DesiredStatus != "RUNNING" {
		t.Fatalf("unexpected payload: %+v", res.Payload)
	}
	if res.Payload.CPUMemory == nil || res.Payload.CPUMemory.CPU != "1024" || res.Payload.CPUMemory.Memory != "2048" {
		t.Fatalf("unexpected cpu/memory: %+v", res.Payload.CPUMemory)
	}
	if !res.HasRetryAfter || res.RetryAfter != 10*time.Second {
		t.Fatalf("expected 10s retry hint, got %s (%v)", res.RetryAfter, res.HasRetryAfter)
	}
}

func TestStatusWithoutRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "soon")
		_, _ = io.WriteString(w, `{"taskStatus":"RUNNING","serverIp":"10.0.0.5"}`)
	}))
	defer srv.Close()

	res, err := newClient(t, srv).Status(context.Background(), "")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if res.HasRetryAfter {
		t.Fatalf("expected unparseable hint to be ignored, got %s", res.RetryAfter)
	}
	if res.Payload.ServerIP != "10.0.0.5" {
		t.Fatalf("unexpected server ip %q", res.Payload.ServerIP)
	}
}

func TestStartSendsCommaJoinedBodyAndResolvesLocation(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/alpha/start" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Location", "tasks/abc")
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"taskStatus":"PROVISIONING"}`)
	}))
	defer srv.Close()

	req := launch.Request{
		Type:      launch.TypeFabric,
		Version:   "1.20.1",
		Datapacks: []string{"https://a.example/1.zip", "https://a.example/2.zip"},
	}
	res, err := newClient(t, srv).Start(context.Background(), req)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got["type"] != "FABRIC" || got["version"] != "1.20.1" {
		t.Fatalf("unexpected body: %v", got)
	}
	if got["datapacks"] != "https://a.example/1.zip,https://a.example/2.zip" {
		t.Fatalf("expected comma-joined datapacks, got %v", got["datapacks"])
	}
	if _, ok := got["mods"]; ok {
		t.Fatalf("expected mods omitted, got %v", got["mods"])
	}
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected status code %d", res.StatusCode)
	}
	if res.Location != srv.URL+"/alpha/tasks/abc" {
		t.Fatalf("unexpected location %q", res.Location)
	}
}

func TestStatusUsesLocationOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks/xyz" {
			t.Errorf("expected override path, got %q", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"taskStatus":"PENDING"}`)
	}))
	defer srv.Close()

	res, err := newClient(t, srv).Status(context.Background(), srv.URL+"/tasks/xyz")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if res.Payload.TaskStatus != "PENDING" {
		t.Fatalf("unexpected status %q", res.Payload.TaskStatus)
	}
}

func TestStopEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 {
			t.Errorf("stop should not send a body")
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	res, err := newClient(t, srv).Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.HasPayload {
		t.Fatalf("expected no payload, got %+v", res.Payload)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   string
		wantMarker error
	}{
		{"conflict", http.StatusConflict, "already running", "conflict", services.ErrConflict},
		{"server 500", http.StatusInternalServerError, "boom", "server", services.ErrServer},
		{"not found", http.StatusNotFound, "", "server", services.ErrServer},
		{"malformed body", http.StatusOK, "{not json", "server", services.ErrServer},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := newClient(t, srv).Start(context.Background(), launch.Request{Type: launch.TypeVanilla, Version: "1.21"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := services.Kind(err); got != tc.wantKind {
				t.Fatalf("expected kind %q, got %q (%v)", tc.wantKind, got, err)
			}
			if !errors.Is(err, tc.wantMarker) {
				t.Fatalf("expected marker %v in %v", tc.wantMarker, err)
			}
			var serverErr *controlplane.ServerError
			if errors.As(err, &serverErr) && serverErr.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, serverErr.StatusCode)
			}
		})
	}
}

func TestTransportFailureIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := newClient(t, srv)
	srv.Close()

	_, err := client.Status(context.Background(), "")
	var serverErr *controlplane.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if serverErr.StatusCode != 0 || serverErr.Err == nil {
		t.Fatalf("expected transport error detail, got %+v", serverErr)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"10", 10 * time.Second, true},
		{" 0 ", 0, true},
		{"-3", 0, false},
		{"", 0, false},
		{"later", 0, false},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second, true},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
	}
	for _, tc := range tests {
		got, ok := controlplane.ParseRetryAfter(tc.value, now)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseRetryAfter(%q) = %s,%v want %s,%v", tc.value, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNewRejectsRelativeBase(t *testing.T) {
	if _, err := controlplane.New(controlplane.Config{BaseURL: "control.example.com"}); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestNewWithHTTP2(t *testing.T) {
	client, err := controlplane.New(controlplane.Config{BaseURL: "https://cp.example.com", HTTP2: true})
	if err != nil {
		t.Fatalf("New with http2: %v", err)
	}
	if !strings.HasSuffix(client.StatusURL(), "/status") {
		t.Fatalf("unexpected status url %q", client.StatusURL())
	}
}
