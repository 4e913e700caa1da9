package controlplane

import (
	"fmt"
	"net/http"
	"strings"

	"mcpanel/internal/services"
)

const maxErrorBody = 512

// ConflictError reports an HTTP 409: the requested transition is already
// satisfied or in progress. It is never retried automatically.
type ConflictError struct {
	Action string
	Body   string
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s: server is busy (HTTP %d)", e.Action, http.StatusConflict)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

func (e *ConflictError) ErrorKind() string { return "conflict" }

func (e *ConflictError) Unwrap() error { return services.ErrConflict }

// ServerError covers every other failure: transport errors, non-2xx statuses,
// and bodies that do not decode. StatusCode is zero when no response arrived.
type ServerError struct {
	Action     string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServerError) Error() string {
	var b strings.Builder
	b.WriteString(e.Action)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		b.WriteString(": ")
		b.WriteString(body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServerError) ErrorKind() string { return "server" }

func (e *ServerError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrServer}
	}
	return []error{services.ErrServer, e.Err}
}

func truncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		return text[:maxErrorBody] + "..."
	}
	return text
}
