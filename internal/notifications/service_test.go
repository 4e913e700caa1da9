package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"mcpanel/internal/config"
	"mcpanel/internal/notifications"
	"mcpanel/internal/reconciler"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

type recorder struct {
	mu   sync.Mutex
	msgs []captured
}

func (r *recorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", req.Method)
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		r.mu.Lock()
		r.msgs = append(r.msgs, captured{
			title:    req.Header.Get("Title"),
			tags:     req.Header.Get("Tags"),
			priority: req.Header.Get("Priority"),
			body:     string(body),
		})
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (r *recorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.msgs...)
}

func newService(t *testing.T, mutate func(*config.Config)) (notifications.Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(rec.handler(t))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RequestTimeout = 5
	if mutate != nil {
		mutate(&cfg)
	}
	return notifications.NewService(&cfg), rec
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventServerRunning, notifications.Payload{"serverIp": "10.0.0.1"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:           "running",
			event:          notifications.EventServerRunning,
			payload:        notifications.Payload{"serverIp": "203.0.113.5"},
			expectTitle:    "Minecraft - Running",
			expectMessage:  "🟢 Server is running at 203.0.113.5",
			expectTags:     "mcpanel,server,running",
			expectPriority: "high",
		},
		{
			name:          "starting",
			event:         notifications.EventServerStarting,
			payload:       notifications.Payload{"status": "STARTING"},
			expectTitle:   "Minecraft - Starting",
			expectMessage: "⏳ Server is starting (STARTING)",
			expectTags:    "mcpanel,server,starting",
		},
		{
			name:          "stopped",
			event:         notifications.EventServerStopped,
			expectTitle:   "Minecraft - Stopped",
			expectMessage: "⚪ Server stopped",
			expectTags:    "mcpanel,server,stopped",
		},
		{
			name:          "action",
			event:         notifications.EventActionRequested,
			payload:       notifications.Payload{"action": "stop", "detail": "STOPPING"},
			expectTitle:   "Minecraft - Stop Requested",
			expectMessage: "Requested stop: STOPPING",
			expectTags:    "mcpanel,action,stop",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "start", "error": errors.New("control plane returned HTTP 500")},
			expectTitle:    "Minecraft - Error",
			expectMessage:  "❌ Error with start: control plane returned HTTP 500",
			expectTags:     "mcpanel,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Minecraft - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "mcpanel,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, rec := newService(t, nil)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			msgs := rec.all()
			if len(msgs) != 1 {
				t.Fatalf("expected one message, got %d", len(msgs))
			}
			got := msgs[0]
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursGates(t *testing.T) {
	svc, rec := newService(t, func(cfg *config.Config) {
		cfg.Notifications.Transitions = false
		cfg.Notifications.Actions = false
	})
	ctx := context.Background()
	for _, event := range []notifications.Event{
		notifications.EventServerRunning,
		notifications.EventServerStopped,
		notifications.EventActionRequested,
		"unknown_event",
	} {
		if err := svc.Publish(ctx, event, nil); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
	if len(rec.all()) != 0 {
		t.Fatalf("expected suppressed events to send nothing, got %d", len(rec.all()))
	}
	if err := svc.Publish(ctx, notifications.EventError, notifications.Payload{"error": "boom"}); err != nil {
		t.Fatalf("error event: %v", err)
	}
	if len(rec.all()) != 1 {
		t.Fatal("errors should still be delivered")
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic disabled", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestPublishUpdate(t *testing.T) {
	svc, rec := newService(t, nil)
	ctx := context.Background()

	start := reconciler.Update{
		Previous: reconciler.ServerStatus{TaskStatus: reconciler.StatusStopped},
		Current:  reconciler.ServerStatus{TaskStatus: reconciler.StatusProvisioning},
		Cause:    reconciler.CauseStart,
	}
	if err := notifications.PublishUpdate(ctx, svc, start); err != nil {
		t.Fatalf("PublishUpdate start: %v", err)
	}
	running := reconciler.Update{
		Previous: reconciler.ServerStatus{TaskStatus: reconciler.StatusStarting},
		Current:  reconciler.ServerStatus{TaskStatus: reconciler.StatusRunning, ServerIP: "10.0.0.8"},
		Cause:    reconciler.CausePoll,
	}
	if err := notifications.PublishUpdate(ctx, svc, running); err != nil {
		t.Fatalf("PublishUpdate running: %v", err)
	}
	unchanged := reconciler.Update{Previous: running.Current, Current: running.Current, Cause: reconciler.CausePoll}
	if err := notifications.PublishUpdate(ctx, svc, unchanged); err != nil {
		t.Fatalf("PublishUpdate unchanged: %v", err)
	}
	transient := reconciler.Update{Cause: reconciler.CausePoll, Err: &reconciler.PollError{Err: errors.New("timeout"), Consecutive: 1}}
	if err := notifications.PublishUpdate(ctx, svc, transient); err != nil {
		t.Fatalf("PublishUpdate transient: %v", err)
	}
	conflict := reconciler.Update{Cause: reconciler.CauseStart, Err: reconciler.ErrActionInFlight}
	if err := notifications.PublishUpdate(ctx, svc, conflict); err != nil {
		t.Fatalf("PublishUpdate conflict: %v", err)
	}
	exhausted := reconciler.Update{Cause: reconciler.CausePoll, Err: &reconciler.PollError{Err: errors.New("timeout"), Consecutive: 5, Exhausted: true}}
	if err := notifications.PublishUpdate(ctx, svc, exhausted); err != nil {
		t.Fatalf("PublishUpdate exhausted: %v", err)
	}

	msgs := rec.all()
	wantTitles := []string{"Minecraft - Start Requested", "Minecraft - Running", "Minecraft - Error"}
	if len(msgs) != len(wantTitles) {
		t.Fatalf("expected %d messages, got %d: %+v", len(wantTitles), len(msgs), msgs)
	}
	for i, want := range wantTitles {
		if msgs[i].title != want {
			t.Fatalf("message %d: expected %q, got %q", i, want, msgs[i].title)
		}
	}
}
