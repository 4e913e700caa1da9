package preflight

import (
	"context"

	"mcpanel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Options selects the optional checks RunAll performs.
type Options struct {
	// Bind checks that the panel listen address is free.
	Bind bool
	// Remote issues a live status request to the control plane.
	Remote bool
}

// RunAll executes the preflight checks for cfg.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if opts.Bind {
		results = append(results, CheckBindAvailable(cfg.Panel.Bind))
	}
	if opts.Remote {
		results = append(results, CheckControlPlane(ctx, cfg))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
