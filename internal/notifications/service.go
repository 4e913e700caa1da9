package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mcpanel/internal/config"
)

const userAgent = "mcpanel/0.1"

// Event identifies a notification type.
type Event string

const (
	EventServerStarting  Event = "server_starting"
	EventServerRunning   Event = "server_running"
	EventServerStopped   Event = "server_stopped"
	EventActionRequested Event = "action_requested"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		gates: map[Event]bool{
			EventServerStarting:  cfg.Notifications.Transitions,
			EventServerRunning:   cfg.Notifications.Transitions,
			EventServerStopped:   cfg.Notifications.Transitions,
			EventActionRequested: cfg.Notifications.Actions,
			EventError:           cfg.Notifications.Errors,
			EventTest:            true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	gates    map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.gates[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventServerStarting:
		return message{
			title: "Minecraft - Starting",
			body:  fmt.Sprintf("⏳ Server is starting (%s)", orDefault(payloadString(payload, "status"), "STARTING")),
			tags:  []string{"mcpanel", "server", "starting"},
		}, true
	case EventServerRunning:
		body := "🟢 Server is running"
		if ip := payloadString(payload, "serverIp"); ip != "" {
			body = fmt.Sprintf("🟢 Server is running at %s", ip)
		}
		return message{
			title:    "Minecraft - Running",
			body:     body,
			tags:     []string{"mcpanel", "server", "running"},
			priority: "high",
		}, true
	case EventServerStopped:
		return message{
			title: "Minecraft - Stopped",
			body:  "⚪ Server stopped",
			tags:  []string{"mcpanel", "server", "stopped"},
		}, true
	case EventActionRequested:
		action := orDefault(payloadString(payload, "action"), "action")
		body := fmt.Sprintf("Requested %s", action)
		if detail := payloadString(payload, "detail"); detail != "" {
			body = fmt.Sprintf("%s: %s", body, detail)
		}
		return message{
			title: "Minecraft - " + strings.ToUpper(action[:1]) + action[1:] + " Requested",
			body:  body,
			tags:  []string{"mcpanel", "action", action},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(orDefault(payloadString(payload, "error"), "unknown"))
		return message{
			title:    "Minecraft - Error",
			body:     builder.String(),
			tags:     []string{"mcpanel", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Minecraft - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"mcpanel", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
