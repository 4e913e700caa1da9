package api

import (
	"strings"
	"time"

	"mcpanel/internal/config"
	"mcpanel/internal/launch"
	"mcpanel/internal/mcstatus"
	"mcpanel/internal/reconciler"
	"mcpanel/internal/snapshots"
)

// FromServerStatus converts a reconciler snapshot to its API representation.
func FromServerStatus(status reconciler.ServerStatus) ServerStatus {
	return ServerStatus{
		TaskStatus:    string(status.TaskStatus.Canonical()),
		ServerIP:      status.ServerIP,
		Error:         status.Error,
		DesiredStatus: status.DesiredStatus,
		CreatedAt:     status.CreatedAt,
		LaunchType:    status.LaunchType,
		CPU:           status.CPU,
		Memory:        status.Memory,
		ObservedAt:    formatTime(status.ObservedAt),
		Stale:         status.Stale,
		Terminal:      status.Terminal(),
	}
}

// ToServerStatus converts an API snapshot back to the reconciler type.
func ToServerStatus(dto ServerStatus) reconciler.ServerStatus {
	status := reconciler.ServerStatus{
		TaskStatus:    reconciler.TaskStatus(dto.TaskStatus),
		ServerIP:      dto.ServerIP,
		Error:         dto.Error,
		DesiredStatus: dto.DesiredStatus,
		CreatedAt:     dto.CreatedAt,
		LaunchType:    dto.LaunchType,
		CPU:           dto.CPU,
		Memory:        dto.Memory,
		Stale:         dto.Stale,
	}
	if observed, err := time.Parse(dateTimeFormat, dto.ObservedAt); err == nil {
		status.ObservedAt = observed
	}
	return status
}

// FromPollState converts the reconciler poll state.
func FromPollState(state reconciler.PollState) PollState {
	return PollState{
		Polling:             state.Polling,
		NextPollAt:          formatTime(state.NextPollAt),
		ActionInFlight:      state.ActionInFlight,
		ConsecutiveFailures: state.ConsecutiveFailures,
		LastError:           state.LastError,
		Location:            state.Location,
	}
}

// NewStatusResponse assembles the status payload.
func NewStatusResponse(status reconciler.ServerStatus, known bool, state reconciler.PollState) StatusResponse {
	resp := StatusResponse{Known: known, Poll: FromPollState(state)}
	if known {
		resp.Status = FromServerStatus(status)
	}
	return resp
}

// LaunchRequest merges req with the configured defaults.
func (req StartRequest) LaunchRequest(defaults config.Launch) launch.Request {
	out := launch.Request{
		Type:      launch.ServerType(strings.TrimSpace(req.Type)),
		Version:   strings.TrimSpace(req.Version),
		Datapacks: req.Datapacks,
		Mods:      req.Mods,
	}
	if out.Type == "" {
		out.Type = launch.ServerType(defaults.Type)
	}
	if out.Version == "" {
		out.Version = defaults.Version
	}
	if out.Datapacks == nil {
		out.Datapacks = defaults.Datapacks
	}
	if out.Mods == nil && launch.ServerType(strings.ToUpper(string(out.Type))) == launch.TypeFabric {
		out.Mods = defaults.Mods
	}
	return out
}

// FromLaunchRequest converts a launch request into the wire body.
func FromLaunchRequest(req launch.Request) StartRequest {
	return StartRequest{
		Type:      string(req.Type),
		Version:   req.Version,
		Datapacks: req.Datapacks,
		Mods:      req.Mods,
	}
}

// FromHistory converts cache entries.
func FromHistory(entries []snapshots.Entry) HistoryResponse {
	out := HistoryResponse{Entries: make([]HistoryEntry, 0, len(entries))}
	for _, entry := range entries {
		out.Entries = append(out.Entries, HistoryEntry{
			ID:         entry.ID,
			TaskStatus: string(entry.Status.TaskStatus.Canonical()),
			ServerIP:   entry.Status.ServerIP,
			Error:      entry.Status.Error,
			Cause:      entry.Cause,
			ObservedAt: formatTime(entry.Status.ObservedAt),
			RecordedAt: formatTime(entry.RecordedAt),
		})
	}
	return out
}

// FromPlayers converts an mcstatus lookup.
func FromPlayers(status mcstatus.Status) PlayersResponse {
	resp := PlayersResponse{
		Address: status.Address,
		Online:  status.Online,
		Count:   status.Players.Online,
		Max:     status.Players.Max,
		Players: make([]Player, 0, len(status.Players.List)),
	}
	if status.Version != nil {
		resp.Version = status.Version.Name
	}
	if status.MOTD != nil {
		resp.MOTD = strings.TrimSpace(status.MOTD.Clean)
	}
	for _, p := range status.Players.List {
		resp.Players = append(resp.Players, Player{Name: p.Name, UUID: p.UUID})
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
