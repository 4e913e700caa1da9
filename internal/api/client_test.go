package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mcpanel/internal/api"
	"mcpanel/internal/services"
)

func TestNewClientEmptyBind(t *testing.T) {
	client, err := api.NewClient("", "", 0)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.Status(context.Background()); !errors.Is(err, api.ErrPanelUnavailable) {
		t.Fatalf("expected ErrPanelUnavailable from nil client, got %v", err)
	}
}

func TestClientStartSendsTokenAndBody(t *testing.T) {
	var got api.StartRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/start" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.StatusResponse{
			Known:  true,
			Status: api.ServerStatus{TaskStatus: "PROVISIONING"},
			Poll:   api.PollState{Polling: true},
		})
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "s3cret", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Start(context.Background(), api.StartRequest{Type: "FABRIC", Version: "1.20.1", Mods: []string{"https://m.example/a.jar"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got.Type != "FABRIC" || len(got.Mods) != 1 {
		t.Fatalf("unexpected body %+v", got)
	}
	if resp.Status.TaskStatus != "PROVISIONING" || !resp.Poll.Polling {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestClientMapsErrorKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("expected limit query, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "a lifecycle action is already in flight", Kind: "conflict"})
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL, "", time.Second)
	_, err := client.History(context.Background(), 5)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected api.Error 409, got %v", err)
	}
	if !errors.Is(err, services.ErrConflict) || services.Kind(err) != "conflict" {
		t.Fatalf("expected conflict classification, got %v", err)
	}
}

func TestIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client, _ := api.NewClient(srv.URL, "", time.Second)
	srv.Close()

	_, err := client.Status(context.Background())
	if !api.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if api.IsUnavailable(errors.New("boom")) {
		t.Fatal("plain errors are not unavailability")
	}
}
