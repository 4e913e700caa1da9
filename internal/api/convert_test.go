package api_test

import (
	"testing"
	"time"

	"mcpanel/internal/api"
	"mcpanel/internal/config"
	"mcpanel/internal/launch"
	"mcpanel/internal/mcstatus"
	"mcpanel/internal/reconciler"
	"mcpanel/internal/snapshots"
)

func TestServerStatusRoundTripKeepsObservedAt(t *testing.T) {
	observed := time.Date(2026, 4, 5, 6, 7, 8, 123000000, time.UTC)
	status := reconciler.ServerStatus{
		TaskStatus: "running",
		ServerIP:   "10.0.0.2",
		LaunchType: "FARGATE",
		ObservedAt: observed,
		Stale:      true,
	}
	dto := api.FromServerStatus(status)
	if dto.TaskStatus != "RUNNING" || !dto.Terminal || !dto.Stale {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if dto.ObservedAt != "2026-04-05T06:07:08.123Z" {
		t.Fatalf("unexpected timestamp %q", dto.ObservedAt)
	}
	back := api.ToServerStatus(dto)
	if !back.ObservedAt.Equal(observed) || back.ServerIP != "10.0.0.2" || back.LaunchType != "FARGATE" {
		t.Fatalf("unexpected round trip %+v", back)
	}
}

func TestNewStatusResponseUnknown(t *testing.T) {
	resp := api.NewStatusResponse(reconciler.ServerStatus{}, false, reconciler.PollState{Polling: true})
	if resp.Known || resp.Status.TaskStatus != "" || !resp.Poll.Polling {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestStartRequestDefaults(t *testing.T) {
	defaults := config.Launch{
		Type:      "FABRIC",
		Version:   "1.20.1",
		Datapacks: []string{"https://cdn.example/default.zip"},
		Mods:      []string{"https://cdn.example/mod.jar"},
	}

	got := api.StartRequest{}.LaunchRequest(defaults)
	if got.Type != launch.TypeFabric || got.Version != "1.20.1" || len(got.Datapacks) != 1 || len(got.Mods) != 1 {
		t.Fatalf("expected defaults applied, got %+v", got)
	}

	vanilla := api.StartRequest{Type: "vanilla", Version: "1.21", Datapacks: []string{}}.LaunchRequest(defaults)
	if vanilla.Version != "1.21" || len(vanilla.Datapacks) != 0 || len(vanilla.Mods) != 0 {
		t.Fatalf("explicit values should win and vanilla should skip default mods, got %+v", vanilla)
	}
}

func TestFromHistoryAndPlayers(t *testing.T) {
	entries := []snapshots.Entry{{
		ID:     3,
		Status: reconciler.ServerStatus{TaskStatus: reconciler.StatusStopping},
		Cause:  reconciler.CauseStop,
	}}
	history := api.FromHistory(entries)
	if len(history.Entries) != 1 || history.Entries[0].TaskStatus != "STOPPING" || history.Entries[0].Cause != "stop" {
		t.Fatalf("unexpected history %+v", history)
	}

	players := api.FromPlayers(mcstatus.Status{
		Online:  true,
		Address: "mc.example.com",
		Version: &mcstatus.Version{Name: "1.20.1"},
		Players: mcstatus.Players{Online: 1, Max: 10, List: []mcstatus.Player{{UUID: "u1", Name: "Steve"}}},
	})
	if players.Count != 1 || players.Max != 10 || players.Players[0].Name != "Steve" || players.Version != "1.20.1" {
		t.Fatalf("unexpected players %+v", players)
	}
}
