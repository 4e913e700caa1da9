package reconciler

import (
	"strings"
	"time"

	"mcpanel/internal/controlplane"
)

// TaskStatus is the remote task state reported by the control plane. Values
// outside the declared set are kept verbatim and treated as transient.
type TaskStatus string

const (
	StatusStopped        TaskStatus = "STOPPED"
	StatusProvisioning   TaskStatus = "PROVISIONING"
	StatusPending        TaskStatus = "PENDING"
	StatusStarting       TaskStatus = "STARTING"
	StatusRunning        TaskStatus = "RUNNING"
	StatusStopping       TaskStatus = "STOPPING"
	StatusDeprovisioning TaskStatus = "DEPROVISIONING"
	StatusError          TaskStatus = "ERROR"
	StatusUnknown        TaskStatus = "UNKNOWN"
)

// Terminal reports whether polling should stop at this status.
func (s TaskStatus) Terminal() bool {
	return s.Is(StatusRunning) || s.Is(StatusStopped)
}

// Is compares statuses case-insensitively.
func (s TaskStatus) Is(other TaskStatus) bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), string(other))
}

// Canonical returns the upper-case form used for display and storage.
func (s TaskStatus) Canonical() TaskStatus {
	return TaskStatus(strings.ToUpper(strings.TrimSpace(string(s))))
}

// ServerStatus is one observed snapshot of the remote server.
type ServerStatus struct {
	TaskStatus    TaskStatus `json:"taskStatus"`
	ServerIP      string     `json:"serverIp,omitempty"`
	Error         string     `json:"error,omitempty"`
	DesiredStatus string     `json:"desiredStatus,omitempty"`
	CreatedAt     string     `json:"createdAt,omitempty"`
	LaunchType    string     `json:"launchType,omitempty"`
	CPU           string     `json:"cpu,omitempty"`
	Memory        string     `json:"memory,omitempty"`
	ObservedAt    time.Time  `json:"observedAt"`
	// Stale marks a snapshot that was not confirmed by the latest fetch.
	Stale bool `json:"stale,omitempty"`
}

// Terminal reports whether the snapshot's task status ends polling.
func (s ServerStatus) Terminal() bool {
	return s.TaskStatus.Terminal()
}

// IsZero reports whether no status has been observed.
func (s ServerStatus) IsZero() bool {
	return s.TaskStatus == "" && s.ObservedAt.IsZero()
}

// FromPayload converts a control-plane body into a snapshot.
func FromPayload(p controlplane.StatusPayload, observedAt time.Time) ServerStatus {
	status := ServerStatus{
		TaskStatus:    TaskStatus(strings.TrimSpace(p.TaskStatus)),
		ServerIP:      strings.TrimSpace(p.ServerIP),
		Error:         strings.TrimSpace(p.Error),
		DesiredStatus: strings.TrimSpace(p.DesiredStatus),
		CreatedAt:     strings.TrimSpace(p.CreatedAt),
		LaunchType:    strings.TrimSpace(p.LaunchType),
		ObservedAt:    observedAt,
	}
	if status.TaskStatus == "" {
		status.TaskStatus = StatusUnknown
	}
	if p.CPUMemory != nil {
		status.CPU = string(p.CPUMemory.CPU)
		status.Memory = string(p.CPUMemory.Memory)
	}
	return status
}

// Merge builds the snapshot that replaces prev after next was observed.
// TaskStatus, ServerIP, Error, and ObservedAt always come from next. The
// descriptive fields a partial response may omit are carried over from prev.
func Merge(prev, next ServerStatus) ServerStatus {
	merged := next
	merged.Stale = false
	if merged.DesiredStatus == "" {
		merged.DesiredStatus = prev.DesiredStatus
	}
	if merged.CreatedAt == "" {
		merged.CreatedAt = prev.CreatedAt
	}
	if merged.LaunchType == "" {
		merged.LaunchType = prev.LaunchType
	}
	if merged.CPU == "" {
		merged.CPU = prev.CPU
	}
	if merged.Memory == "" {
		merged.Memory = prev.Memory
	}
	return merged
}

// Changed reports whether the visible lifecycle state differs between a and b.
func Changed(a, b ServerStatus) bool {
	return !a.TaskStatus.Is(b.TaskStatus.Canonical()) || a.ServerIP != b.ServerIP || a.Error != b.Error
}
