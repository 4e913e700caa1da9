// Package main hosts the mcpanel CLI entrypoint and command graph.
//
// Lifecycle commands (start, stop, status, refresh, players, history) go
// through the panel's JSON API when a panel is listening on panel.bind and
// drive the reconciler in-process otherwise. "mcpanel serve" runs the panel
// itself. Configuration resolution and logger setup live here so subcommands
// only deal with output.
package main
