package panel_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mcpanel/internal/api"
	"mcpanel/internal/config"
	"mcpanel/internal/notifications"
	"mcpanel/internal/panel"
	"mcpanel/internal/reconciler"
	"mcpanel/internal/services"
	"mcpanel/internal/snapshots"
	"mcpanel/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) has(event notifications.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startPanel(t *testing.T, cfg *config.Config, notifier notifications.Service) (*panel.Panel, *testsupport.ManualScheduler) {
	t.Helper()
	sched := &testsupport.ManualScheduler{}
	opts := []panel.Option{panel.WithScheduler(sched)}
	if notifier != nil {
		opts = append(opts, panel.WithNotifier(notifier))
	}
	p, err := panel.New(cfg, nil, opts...)
	if err != nil {
		t.Fatalf("panel.New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "initial status", func() bool {
		_, ok := p.Reconciler().Snapshot()
		return ok
	})
	return p, sched
}

func newClient(t *testing.T, p *panel.Panel, token string) *api.Client {
	t.Helper()
	client, err := api.NewClient(p.Addr(), token, 2*time.Second)
	if err != nil {
		t.Fatalf("api.NewClient: %v", err)
	}
	return client
}

func TestPanelStartStopFlow(t *testing.T) {
	fake := testsupport.NewControlPlane(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL()))
	notifier := &recordingNotifier{}
	p, sched := startPanel(t, cfg, notifier)
	client := newClient(t, p, "")
	ctx := context.Background()

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Known || status.Status.TaskStatus != "STOPPED" || status.Poll.Polling {
		t.Fatalf("unexpected initial status %+v", status)
	}

	started, err := client.Start(ctx, api.StartRequest{Datapacks: []string{"https://cdn.example/pack.zip"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status.TaskStatus != "PROVISIONING" || !started.Poll.Polling {
		t.Fatalf("unexpected start response %+v", started)
	}
	body := fake.Requests(testsupport.RouteStart)[0].Body
	want := `{"type":"FABRIC","version":"1.20.1","datapacks":"https://cdn.example/pack.zip"}`
	if body != want {
		t.Fatalf("expected launch defaults applied\n got %s\nwant %s", body, want)
	}

	fake.Enqueue(testsupport.RouteStatus, testsupport.Response{Body: `{"taskStatus":"RUNNING","serverIp":"198.51.100.20"}`})
	if !sched.FireNext() {
		t.Fatal("expected a poll to be armed after start")
	}
	status, err = client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status.TaskStatus != "RUNNING" || status.Status.ServerIP != "198.51.100.20" || status.Poll.Polling {
		t.Fatalf("expected RUNNING with polling halted, got %+v", status)
	}

	stopped, err := client.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped.Status.TaskStatus != "STOPPING" {
		t.Fatalf("unexpected stop response %+v", stopped)
	}

	waitFor(t, "history", func() bool {
		history, err := client.History(ctx, 10)
		return err == nil && len(history.Entries) >= 4
	})
	history, _ := client.History(ctx, 10)
	if history.Entries[0].TaskStatus != "STOPPING" || history.Entries[0].Cause != reconciler.CauseStop {
		t.Fatalf("unexpected newest entry %+v", history.Entries[0])
	}
	waitFor(t, "running notification", func() bool { return notifier.has(notifications.EventServerRunning) })
	if !notifier.has(notifications.EventActionRequested) {
		t.Fatal("expected action notification")
	}
}

func TestPanelMapsErrors(t *testing.T) {
	fake := testsupport.NewControlPlane(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL()))
	p, _ := startPanel(t, cfg, nil)
	client := newClient(t, p, "")
	ctx := context.Background()

	_, err := client.Start(ctx, api.StartRequest{Type: "FABRIC", Version: "1.20.1", Datapacks: []string{"not-a-url"}})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || apiErr.Kind != "validation" {
		t.Fatalf("expected 400 validation, got %v", err)
	}
	if fake.Count(testsupport.RouteStart) != 0 {
		t.Fatal("invalid start must not reach the control plane")
	}

	fake.Enqueue(testsupport.RouteStart, testsupport.Response{Status: http.StatusConflict, Body: "already running"})
	_, err = client.Start(ctx, api.StartRequest{})
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict || !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected 409 conflict, got %v", err)
	}

	fake.Enqueue(testsupport.RouteStop, testsupport.Response{Status: http.StatusInternalServerError, Body: "boom"})
	_, err = client.Stop(ctx)
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || apiErr.Kind != "server" {
		t.Fatalf("expected 502 server, got %v", err)
	}

	_, err = client.Players(ctx)
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for players on a stopped server, got %v", err)
	}

	resp, err := http.Get("http://" + p.Addr() + "/api/start")
	if err != nil {
		t.Fatalf("GET start: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestPanelRequiresToken(t *testing.T) {
	fake := testsupport.NewControlPlane(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL()), testsupport.WithPanelToken("s3cret"))
	p, _ := startPanel(t, cfg, nil)
	ctx := context.Background()

	_, err := newClient(t, p, "").Status(ctx)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v", err)
	}
	if _, err := newClient(t, p, "wrong").Status(ctx); err == nil {
		t.Fatal("expected wrong token to be rejected")
	}
	if _, err := newClient(t, p, "s3cret").Status(ctx); err != nil {
		t.Fatalf("expected token to be accepted, got %v", err)
	}
}

func TestPanelAcceptsBcryptToken(t *testing.T) {
	fake := testsupport.NewControlPlane(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL()))
	cfg.Panel.TokenHash = string(hash)
	p, _ := startPanel(t, cfg, nil)

	if _, err := newClient(t, p, "hashed-secret").Panel(context.Background()); err != nil {
		t.Fatalf("expected bcrypt token accepted, got %v", err)
	}
	if _, err := newClient(t, p, "nope").Panel(context.Background()); err == nil {
		t.Fatal("expected mismatched token rejected")
	}
}

func TestPanelSingleInstance(t *testing.T) {
	fake := testsupport.NewControlPlane(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL()))
	p, _ := startPanel(t, cfg, nil)

	info, err := newClient(t, p, "").Panel(context.Background())
	if err != nil {
		t.Fatalf("Panel: %v", err)
	}
	if !info.Running || info.LockFilePath != cfg.LockPath() || info.CachePath != cfg.CachePath() {
		t.Fatalf("unexpected panel info %+v", info)
	}

	second := *cfg
	second.Panel.Bind = "127.0.0.1:0"
	other, err := panel.New(&second, nil, panel.WithScheduler(&testsupport.ManualScheduler{}))
	if err != nil {
		t.Fatalf("panel.New: %v", err)
	}
	defer other.Close()
	if err := other.Start(context.Background()); err == nil {
		t.Fatal("expected second panel to fail to acquire the lock")
	}

	p.Stop()
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("a stopped panel should not restart")
	}
}

func TestPanelWarmStartFromCache(t *testing.T) {
	fake := testsupport.NewControlPlane(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL()))

	store, err := snapshots.Open(cfg)
	if err != nil {
		t.Fatalf("snapshots.Open: %v", err)
	}
	if _, err := store.Record(context.Background(), reconciler.ServerStatus{TaskStatus: reconciler.StatusRunning, ServerIP: "10.3.3.3"}, reconciler.CausePoll); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = store.Close()

	p, err := panel.New(cfg, nil, panel.WithScheduler(&testsupport.ManualScheduler{}))
	if err != nil {
		t.Fatalf("panel.New: %v", err)
	}
	defer p.Close()

	resp := p.ServerStatus()
	if !resp.Known || !resp.Status.Stale || resp.Status.TaskStatus != "RUNNING" || resp.Status.ServerIP != "10.3.3.3" {
		t.Fatalf("expected stale cached status, got %+v", resp)
	}
}

func TestPanelPlayers(t *testing.T) {
	mc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/java/198.51.100.30" {
			t.Errorf("unexpected mcstatus path %q", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"online":true,"players":{"online":1,"max":8,"list":[{"uuid":"u","name_clean":"Alex"}]}}`)
	}))
	defer mc.Close()

	fake := testsupport.NewControlPlane(t)
	fake.SetDefault(testsupport.RouteStatus, testsupport.Response{Body: `{"taskStatus":"RUNNING","serverIp":"198.51.100.30"}`})
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL()), testsupport.WithMCStatus(mc.URL))
	p, _ := startPanel(t, cfg, nil)

	players, err := newClient(t, p, "").Players(context.Background())
	if err != nil {
		t.Fatalf("Players: %v", err)
	}
	if !players.Online || players.Count != 1 || len(players.Players) != 1 || players.Players[0].Name != "Alex" {
		t.Fatalf("unexpected players %+v", players)
	}
}

func TestHistoryUnavailableWithoutCache(t *testing.T) {
	fake := testsupport.NewControlPlane(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL()), testsupport.WithCache(false))
	p, _ := startPanel(t, cfg, nil)

	_, err := newClient(t, p, "").History(context.Background(), 0)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without cache, got %v", err)
	}
}

func TestPanelAttachRecordsWithoutLock(t *testing.T) {
	fake := testsupport.NewControlPlane(t)
	fake.SetDefault(testsupport.RouteStatus, testsupport.Response{Body: `{"taskStatus":"STOPPED"}`})
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL()))

	running, _ := startPanel(t, cfg, nil)

	local, err := panel.New(cfg, nil, panel.WithScheduler(&testsupport.ManualScheduler{}))
	if err != nil {
		t.Fatalf("panel.New: %v", err)
	}
	if err := local.Attach(); err != nil {
		t.Fatalf("Attach alongside a running panel: %v", err)
	}
	if err := local.Start(context.Background()); err == nil {
		t.Fatal("an attached panel must not also serve")
	}

	fake.SetDefault(testsupport.RouteStatus, testsupport.Response{Body: `{"taskStatus":"RUNNING","serverIp":"10.4.4.4"}`})
	if _, err := local.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := local.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	running.Stop()

	store := testsupport.MustOpenStore(t, cfg)
	latest, ok, err := store.Latest(context.Background())
	if err != nil || !ok || latest.Status.ServerIP != "10.4.4.4" || latest.Cause != reconciler.CauseRefresh {
		t.Fatalf("expected attached refresh to be recorded, got %+v ok=%v err=%v", latest, ok, err)
	}
}

func TestRefreshOverlappingStartAnswersWithSnapshot(t *testing.T) {
	fake := testsupport.NewControlPlane(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL()))
	p, _ := startPanel(t, cfg, nil)
	client := newClient(t, p, "")
	ctx := context.Background()

	gate := make(chan struct{})
	fake.Enqueue(testsupport.RouteStatus, testsupport.Response{Body: `{"taskStatus":"STOPPED"}`, Gate: gate})
	type result struct {
		resp api.StatusResponse
		err  error
	}
	first := make(chan result, 1)
	go func() {
		resp, err := client.Refresh(ctx)
		first <- result{resp, err}
	}()
	waitFor(t, "gated status request", func() bool { return fake.Count(testsupport.RouteStatus) == 2 })

	if _, err := client.Refresh(ctx); err != nil {
		t.Fatalf("overlapping refresh should answer with the snapshot, got %v", err)
	}
	if _, err := client.Start(ctx, api.StartRequest{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	close(gate)
	got := <-first
	if got.err != nil {
		t.Fatalf("superseded refresh should not fail, got %v", got.err)
	}
	if got.resp.Status.TaskStatus != "PROVISIONING" {
		t.Fatalf("expected the action's status, got %q", got.resp.Status.TaskStatus)
	}
}
