package notifications

import (
	"context"
	"errors"

	"mcpanel/internal/reconciler"
	"mcpanel/internal/services"
)

// PublishUpdate turns one reconciler update into at most two events: the
// action that caused it and the lifecycle state it reached. Conflicts and
// single poll failures are not reported; an exhausted poll loop is.
func PublishUpdate(ctx context.Context, svc Service, update reconciler.Update) error {
	if svc == nil {
		return nil
	}
	if update.Err != nil {
		if !reportable(update.Err) {
			return nil
		}
		return svc.Publish(ctx, EventError, Payload{
			"context": update.Cause,
			"error":   update.Err.Error(),
		})
	}

	var errs []error
	if update.Cause == reconciler.CauseStart || update.Cause == reconciler.CauseStop {
		errs = append(errs, svc.Publish(ctx, EventActionRequested, Payload{
			"action": update.Cause,
			"detail": string(update.Current.TaskStatus.Canonical()),
		}))
	}
	if update.Changed() {
		if event, ok := lifecycleEvent(update.Current); ok {
			errs = append(errs, svc.Publish(ctx, event, Payload{
				"status":   string(update.Current.TaskStatus.Canonical()),
				"serverIp": update.Current.ServerIP,
			}))
		}
	}
	return errors.Join(errs...)
}

func lifecycleEvent(status reconciler.ServerStatus) (Event, bool) {
	switch {
	case status.TaskStatus.Is(reconciler.StatusRunning):
		return EventServerRunning, true
	case status.TaskStatus.Is(reconciler.StatusStopped):
		return EventServerStopped, true
	case status.TaskStatus.Is(reconciler.StatusStarting):
		return EventServerStarting, true
	default:
		return "", false
	}
}

func reportable(err error) bool {
	if errors.Is(err, services.ErrConflict) || errors.Is(err, services.ErrUnavailable) {
		return false
	}
	var perr *reconciler.PollError
	if errors.As(err, &perr) {
		return perr.Exhausted
	}
	return true
}
