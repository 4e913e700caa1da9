package main

import (
	"context"
	"time"

	"mcpanel/internal/api"
	"mcpanel/internal/panel"
	"mcpanel/internal/reconciler"
)

// panelWaitInterval is how often a waiting CLI re-reads the panel's status.
const panelWaitInterval = time.Second

type serverAPI interface {
	Status(ctx context.Context) (api.StatusResponse, error)
	Refresh(ctx context.Context) (api.StatusResponse, error)
	Start(ctx context.Context, req api.StartRequest) (api.StatusResponse, error)
	Stop(ctx context.Context) (api.StatusResponse, error)
	History(ctx context.Context, limit int) (api.HistoryResponse, error)
	Players(ctx context.Context) (api.PlayersResponse, error)
	// Wait blocks until polling stops, calling onChange for every observed
	// status change, and returns the final view.
	Wait(ctx context.Context, onChange func(api.StatusResponse)) (api.StatusResponse, error)
	// Mode names the backend for display: "panel" or "local".
	Mode() string
	Close() error
}

// --- Panel adapter ---

type panelAdapter struct {
	client *api.Client
}

func (a *panelAdapter) Status(ctx context.Context) (api.StatusResponse, error) {
	return a.client.Status(ctx)
}

func (a *panelAdapter) Refresh(ctx context.Context) (api.StatusResponse, error) {
	return a.client.Refresh(ctx)
}

func (a *panelAdapter) Start(ctx context.Context, req api.StartRequest) (api.StatusResponse, error) {
	return a.client.Start(ctx, req)
}

func (a *panelAdapter) Stop(ctx context.Context) (api.StatusResponse, error) {
	return a.client.Stop(ctx)
}

func (a *panelAdapter) History(ctx context.Context, limit int) (api.HistoryResponse, error) {
	return a.client.History(ctx, limit)
}

func (a *panelAdapter) Players(ctx context.Context) (api.PlayersResponse, error) {
	return a.client.Players(ctx)
}

func (a *panelAdapter) Wait(ctx context.Context, onChange func(api.StatusResponse)) (api.StatusResponse, error) {
	current, err := a.client.Status(ctx)
	if err != nil {
		return current, err
	}
	ticker := time.NewTicker(panelWaitInterval)
	defer ticker.Stop()
	for current.Poll.Polling || current.Poll.ActionInFlight {
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-ticker.C:
		}
		next, err := a.client.Status(ctx)
		if err != nil {
			return current, err
		}
		if statusChanged(current, next) && onChange != nil {
			onChange(next)
		}
		current = next
	}
	return current, nil
}

func (a *panelAdapter) Mode() string { return "panel" }

func (a *panelAdapter) Close() error { return nil }

// --- Local adapter ---

type localAdapter struct {
	panel *panel.Panel
}

// Status fetches a fresh status: without a panel nothing has been polling.
func (a *localAdapter) Status(ctx context.Context) (api.StatusResponse, error) {
	return a.panel.Refresh(ctx)
}

func (a *localAdapter) Refresh(ctx context.Context) (api.StatusResponse, error) {
	return a.panel.Refresh(ctx)
}

func (a *localAdapter) Start(ctx context.Context, req api.StartRequest) (api.StatusResponse, error) {
	return a.panel.StartServer(ctx, req)
}

func (a *localAdapter) Stop(ctx context.Context) (api.StatusResponse, error) {
	return a.panel.StopServer(ctx)
}

func (a *localAdapter) History(ctx context.Context, limit int) (api.HistoryResponse, error) {
	return a.panel.History(ctx, limit)
}

// Players refreshes first so the RUNNING check sees the live status.
func (a *localAdapter) Players(ctx context.Context) (api.PlayersResponse, error) {
	if _, err := a.panel.Refresh(ctx); err != nil {
		return api.PlayersResponse{}, err
	}
	return a.panel.Players(ctx)
}

func (a *localAdapter) Wait(ctx context.Context, onChange func(api.StatusResponse)) (api.StatusResponse, error) {
	rec := a.panel.Reconciler()
	updates, unsubscribe := rec.Subscribe(16)
	defer unsubscribe()

	if !rec.State().Polling {
		return a.panel.ServerStatus(), nil
	}
	for {
		select {
		case <-ctx.Done():
			return a.panel.ServerStatus(), ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return a.panel.ServerStatus(), reconciler.ErrClosed
			}
			current := a.panel.ServerStatus()
			if update.Changed() && onChange != nil {
				onChange(current)
			}
			if !update.Polling {
				return current, update.Err
			}
		}
	}
}

func (a *localAdapter) Mode() string { return "local" }

func (a *localAdapter) Close() error {
	return a.panel.Close()
}

func statusChanged(prev, next api.StatusResponse) bool {
	return prev.Known != next.Known ||
		prev.Status.TaskStatus != next.Status.TaskStatus ||
		prev.Status.ServerIP != next.Status.ServerIP ||
		prev.Status.Error != next.Status.Error
}
