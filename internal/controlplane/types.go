package controlplane

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// StatusPayload is the JSON body returned by status, start, and stop.
type StatusPayload struct {
	TaskStatus    string     `json:"taskStatus"`
	ServerIP      string     `json:"serverIp,omitempty"`
	Error         string     `json:"error,omitempty"`
	DesiredStatus string     `json:"desiredStatus,omitempty"`
	CreatedAt     string     `json:"createdAt,omitempty"`
	LaunchType    string     `json:"launchType,omitempty"`
	CPUMemory     *CPUMemory `json:"cpuMemory,omitempty"`
}

// CPUMemory carries the task's resource allocation. The control plane reports
// these as strings ("1024") or numbers depending on the deployment.
type CPUMemory struct {
	CPU    Quantity `json:"cpu,omitempty"`
	Memory Quantity `json:"memory,omitempty"`
}

// Quantity decodes from a JSON string or number and keeps the textual form.
type Quantity string

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*q = Quantity(n.String())
	return nil
}

// Result is one successful control-plane response.
type Result struct {
	Payload StatusPayload
	// HasPayload is false when the 2xx response carried no body.
	HasPayload bool
	StatusCode int
	RetryAfter time.Duration
	// HasRetryAfter is false when Retry-After was absent or unparseable.
	HasRetryAfter bool
	// Location is the absolute polling URL advertised by the response, if any.
	Location string
}
