package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mcpanel/internal/controlplane"
	"mcpanel/internal/launch"
	"mcpanel/internal/logging"
)

// Action is a lifecycle transition requested by the operator.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// ParseAction accepts "start" or "stop" in any case.
func ParseAction(value string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(value))) {
	case ActionStart:
		return ActionStart, nil
	case ActionStop:
		return ActionStop, nil
	default:
		return "", fmt.Errorf("unknown action %q", value)
	}
}

// optimistic is the status assumed when an accepted action returns no body.
func (a Action) optimistic() TaskStatus {
	if a == ActionStop {
		return StatusStopping
	}
	return StatusStarting
}

// Start validates req and asks the control plane to launch the server.
func (r *Reconciler) Start(ctx context.Context, req launch.Request) (ServerStatus, error) {
	return r.PerformAction(ctx, ActionStart, req)
}

// Stop asks the control plane to stop the server.
func (r *Reconciler) Stop(ctx context.Context) (ServerStatus, error) {
	return r.PerformAction(ctx, ActionStop, launch.Request{})
}

// PerformAction runs one start or stop call and feeds the result into the
// polling cycle. Start requests are validated before any network call. While
// an action runs, further calls fail fast with ErrActionInFlight. A 409
// leaves the stored status untouched; other failures record their message on
// the snapshot.
func (r *Reconciler) PerformAction(ctx context.Context, action Action, req launch.Request) (ServerStatus, error) {
	switch action {
	case ActionStart:
		prepared, err := launch.Prepare(req)
		if err != nil {
			status, _ := r.Snapshot()
			return status, err
		}
		req = prepared
	case ActionStop:
	default:
		return ServerStatus{}, fmt.Errorf("unknown action %q", action)
	}

	if !r.inFlight.CompareAndSwap(false, true) {
		status, _ := r.Snapshot()
		return status, ErrActionInFlight
	}
	defer r.inFlight.Store(false)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ServerStatus{}, ErrClosed
	}
	// Results of polls started before this action must not override it.
	r.generation++
	r.cancelPendingLocked()
	gen := r.generation
	r.mu.Unlock()

	ctx, release := r.bind(ctx)
	defer release()
	ctx = withCorrelation(ctx, string(action))
	logger := logging.WithContext(ctx, r.logger)
	if action == ActionStart {
		logger.Info("lifecycle action requested",
			logging.String("server_type", string(req.Type)),
			logging.String("version", req.Version),
			logging.Int("datapacks", len(req.Datapacks)),
			logging.Int("mods", len(req.Mods)),
		)
	} else {
		logger.Info("lifecycle action requested")
	}

	var (
		res controlplane.Result
		err error
	)
	if action == ActionStart {
		res, err = r.client.Start(ctx, req)
	} else {
		res, err = r.client.Stop(ctx)
	}
	if err != nil {
		return r.applyActionError(ctx, gen, action, err)
	}

	status := FromPayload(res.Payload, r.now())
	if !res.HasPayload {
		status.TaskStatus = action.optimistic()
	}
	interval, hinted := r.intervalFor(res)
	location := res.Location
	if !hinted {
		// Fall back to the status endpoint's hint. Only the hint is used so a
		// status read that lags the action cannot end the cycle early.
		if probe, probeErr := r.fetch(ctx, location); probeErr == nil {
			interval = probe.Interval
		} else {
			logging.WarnWithContext(logger, "retry hint lookup failed; using fallback interval", "retry_hint_failed",
				logging.Error(probeErr),
				logging.Duration("interval", r.fallback),
				logging.String(logging.FieldImpact, "next status check uses the fallback interval"),
			)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return status, ErrClosed
	}
	if gen != r.generation {
		return status, ErrCanceled
	}
	prev := r.status
	next := status
	if r.hasStatus {
		next = Merge(prev, next)
	}
	r.status = next
	r.hasStatus = true
	r.failures = 0
	r.lastErr = nil
	if location != "" {
		r.location = location
	}
	r.scheduleLocked(next.TaskStatus, interval)
	r.logTransition(logger, prev, next, string(action), interval)
	r.publishLocked(Update{Previous: prev, Current: next, Cause: string(action)})
	return next, nil
}

func (r *Reconciler) applyActionError(ctx context.Context, gen uint64, action Action, actionErr error) (ServerStatus, error) {
	logger := logging.WithContext(ctx, r.logger)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.status, ErrClosed
	}
	if gen != r.generation {
		return r.status, actionErr
	}
	r.lastErr = actionErr
	prev := r.status

	var conflict *ConflictError
	if errors.As(actionErr, &conflict) {
		logging.WarnWithContext(logger, "control plane rejected action as conflicting", "action_conflict",
			logging.Error(actionErr),
			logging.String(logging.FieldErrorHint, "wait for the current transition to finish or stop the server"),
			logging.String(logging.FieldImpact, "no lifecycle change was requested"),
		)
	} else {
		if !r.hasStatus {
			r.status = ServerStatus{TaskStatus: StatusUnknown}
			r.hasStatus = true
		}
		r.status.Error = actionErr.Error()
		logging.ErrorWithContext(logger, "lifecycle action failed", "action_failed",
			logging.Error(actionErr),
			logging.String(logging.FieldErrorHint, "check the control plane logs and retry"),
		)
	}
	// Resume observing whatever the server is doing.
	r.scheduleLocked(r.status.TaskStatus, r.fallback)
	r.publishLocked(Update{Previous: prev, Current: r.status, Cause: string(action), Err: actionErr})
	return r.status, actionErr
}
