package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ServerStatus describes the remote server in a transport-friendly format.
type ServerStatus struct {
	TaskStatus    string `json:"taskStatus"`
	ServerIP      string `json:"serverIp,omitempty"`
	Error         string `json:"error,omitempty"`
	DesiredStatus string `json:"desiredStatus,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	LaunchType    string `json:"launchType,omitempty"`
	CPU           string `json:"cpu,omitempty"`
	Memory        string `json:"memory,omitempty"`
	ObservedAt    string `json:"observedAt,omitempty"`
	Stale         bool   `json:"stale"`
	Terminal      bool   `json:"terminal"`
}

// PollState mirrors the reconciler's polling machinery.
type PollState struct {
	Polling             bool   `json:"polling"`
	NextPollAt          string `json:"nextPollAt,omitempty"`
	ActionInFlight      bool   `json:"actionInFlight"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	LastError           string `json:"lastError,omitempty"`
	Location            string `json:"location,omitempty"`
}

// StatusResponse is returned by status, refresh, start, and stop.
type StatusResponse struct {
	Known  bool         `json:"known"`
	Status ServerStatus `json:"status"`
	Poll   PollState    `json:"poll"`
}

// StartRequest is the body of POST /api/start. Empty fields fall back to the
// [launch] defaults.
type StartRequest struct {
	Type      string   `json:"type,omitempty"`
	Version   string   `json:"version,omitempty"`
	Datapacks []string `json:"datapacks,omitempty"`
	Mods      []string `json:"mods,omitempty"`
}

// HistoryEntry is one recorded transition.
type HistoryEntry struct {
	ID         int64  `json:"id"`
	TaskStatus string `json:"taskStatus"`
	ServerIP   string `json:"serverIp,omitempty"`
	Error      string `json:"error,omitempty"`
	Cause      string `json:"cause"`
	ObservedAt string `json:"observedAt,omitempty"`
	RecordedAt string `json:"recordedAt,omitempty"`
}

// HistoryResponse wraps recorded transitions, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// Player is one online player.
type Player struct {
	Name string `json:"name"`
	UUID string `json:"uuid,omitempty"`
}

// PlayersResponse summarizes who is online.
type PlayersResponse struct {
	Address string   `json:"address"`
	Online  bool     `json:"online"`
	Version string   `json:"version,omitempty"`
	MOTD    string   `json:"motd,omitempty"`
	Count   int      `json:"count"`
	Max     int      `json:"max"`
	Players []Player `json:"players"`
}

// PanelStatus describes the panel daemon itself.
type PanelStatus struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	Bind         string `json:"bind"`
	ControlPlane string `json:"controlPlane"`
	CachePath    string `json:"cachePath,omitempty"`
	LockFilePath string `json:"lockFilePath"`
	LogPath      string `json:"logPath,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
}

// ErrorResponse is the body of every non-2xx panel response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
