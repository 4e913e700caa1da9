// Package panel hosts the long-running mcpanel daemon.
//
// A Panel owns one reconciler, the snapshot cache, and the notifier. It holds
// a file lock so only one panel runs per state directory. It serves the
// local JSON API used by the CLI. Every reconciler update is persisted and
// turned into notifications on a single consumer goroutine.
package panel
