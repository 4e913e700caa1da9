package reconciler

import (
	"errors"
	"fmt"

	"mcpanel/internal/controlplane"
	"mcpanel/internal/launch"
	"mcpanel/internal/services"
)

type (
	ValidationError = launch.ValidationError
	ConflictError   = controlplane.ConflictError
	ServerError     = controlplane.ServerError
)

var (
	// ErrActionInFlight is returned while another start or stop is running.
	ErrActionInFlight = fmt.Errorf("%w: a lifecycle action is already in flight", services.ErrConflict)
	// ErrFetchInFlight is returned by Refresh while another status fetch runs.
	ErrFetchInFlight = fmt.Errorf("%w: a status fetch is already in flight", services.ErrConflict)
	// ErrCanceled is returned when a result arrived after Cancel or a newer
	// action. It carries no marker: nothing failed remotely.
	ErrCanceled = errors.New("status result superseded")
	// ErrClosed is returned once the reconciler is closed.
	ErrClosed = fmt.Errorf("%w: reconciler closed", services.ErrUnavailable)
)

// PollError reports a failed status fetch. Polling continues at the fallback
// interval until Consecutive reaches the configured cap, at which point
// Exhausted is set and no further poll is armed.
type PollError struct {
	Err         error
	Consecutive int
	Exhausted   bool
}

func (e *PollError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("status poll failed %d times, polling stopped: %v", e.Consecutive, e.Err)
	}
	return fmt.Sprintf("status poll failed (attempt %d): %v", e.Consecutive, e.Err)
}

func (e *PollError) ErrorKind() string { return "poll" }

func (e *PollError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrPoll}
	}
	return []error{services.ErrPoll, e.Err}
}
