package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mcpanel/internal/api"
	"mcpanel/internal/reconciler"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

var titleCaser = cases.Title(language.Und)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func renderField(label, value string) string {
	return fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", value)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// displayStatus renders a task status for people: "PROVISIONING" becomes
// "Provisioning".
func displayStatus(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		status = string(reconciler.StatusUnknown)
	}
	return titleCaser.String(strings.ToLower(strings.ReplaceAll(status, "_", " ")))
}

func taskStatusKind(status string) statusKind {
	switch reconciler.TaskStatus(status).Canonical() {
	case reconciler.StatusRunning:
		return statusOK
	case reconciler.StatusStopped:
		return statusInfo
	case reconciler.StatusError, reconciler.StatusUnknown, "":
		return statusError
	default:
		return statusWarn
	}
}

func statusSummary(resp api.StatusResponse) string {
	if !resp.Known {
		return "Unknown (no status observed yet)"
	}
	summary := displayStatus(resp.Status.TaskStatus)
	if resp.Status.ServerIP != "" {
		summary += " at " + resp.Status.ServerIP
	}
	if resp.Status.Stale {
		summary += " (stale)"
	}
	return summary
}

func renderServerStatus(resp api.StatusResponse, now time.Time, colorize bool) []string {
	lines := renderSectionHeader("Server", colorize)
	s := resp.Status
	lines = append(lines, renderStatusLine("Status", taskStatusKind(s.TaskStatus), statusSummary(resp), colorize))
	if !resp.Known {
		return append(lines, renderPollState(resp.Poll, now, colorize)...)
	}
	if s.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, s.Error, colorize))
	}
	if s.DesiredStatus != "" {
		lines = append(lines, renderField("Desired", displayStatus(s.DesiredStatus)))
	}
	if s.LaunchType != "" {
		lines = append(lines, renderField("Launch type", s.LaunchType))
	}
	if s.CPU != "" || s.Memory != "" {
		lines = append(lines, renderField("CPU / Memory", fmt.Sprintf("%s / %s", orDash(s.CPU), orDash(s.Memory))))
	}
	if s.CreatedAt != "" {
		lines = append(lines, renderField("Created", s.CreatedAt))
	}
	if s.ObservedAt != "" {
		lines = append(lines, renderField("Observed", s.ObservedAt))
	}
	return append(lines, renderPollState(resp.Poll, now, colorize)...)
}

func renderPollState(poll api.PollState, now time.Time, colorize bool) []string {
	lines := []string{""}
	lines = append(lines, renderSectionHeader("Polling", colorize)...)
	switch {
	case poll.Polling:
		next := "armed"
		if at, err := time.Parse(time.RFC3339Nano, poll.NextPollAt); err == nil {
			wait := at.Sub(now).Round(time.Second)
			if wait < 0 {
				wait = 0
			}
			next = fmt.Sprintf("next check in %s", wait)
		}
		lines = append(lines, renderStatusLine("Polling", statusWarn, next, colorize))
	default:
		lines = append(lines, renderStatusLine("Polling", statusInfo, "idle", colorize))
	}
	lines = append(lines, renderField("Action in flight", yesNo(poll.ActionInFlight)))
	if poll.ConsecutiveFailures > 0 {
		lines = append(lines, renderStatusLine("Failures", statusError, fmt.Sprintf("%d consecutive", poll.ConsecutiveFailures), colorize))
	}
	if poll.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, poll.LastError, colorize))
	}
	return lines
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
