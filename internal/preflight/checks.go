package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mcpanel/internal/config"
	"mcpanel/internal/controlplane"
	"mcpanel/internal/logging"
	"mcpanel/internal/reconciler"
)

const controlPlaneCheckTimeout = 10 * time.Second

// CheckControlPlane issues one status request against the configured control
// plane and reports the observed task status.
func CheckControlPlane(ctx context.Context, cfg *config.Config) Result {
	const name = "Control plane"

	if cfg == nil || strings.TrimSpace(cfg.ControlPlane.BaseURL) == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}
	client, err := controlplane.NewFromConfig(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, controlPlaneCheckTimeout)
	defer cancel()

	started := time.Now()
	result, err := client.Status(checkCtx, "")
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	elapsed := time.Since(started).Round(time.Millisecond)
	status := reconciler.StatusUnknown
	if result.HasPayload {
		status = reconciler.FromPayload(result.Payload, started).TaskStatus.Canonical()
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%s, %s)", status, elapsed)}
}

// CheckBindAvailable verifies the panel can listen on bind.
func CheckBindAvailable(bind string) Result {
	const name = "Panel bind"

	bind = strings.TrimSpace(bind)
	if bind == "" {
		return Result{Name: name, Passed: true, Detail: "disabled"}
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bind, err)}
	}
	_ = listener.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", bind)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "status check timed out (control plane unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "status check timed out (control plane unreachable)"
	}
	return err.Error()
}
