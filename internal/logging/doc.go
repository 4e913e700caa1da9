// Package logging assembles structured slog loggers used by the mcpanel CLI
// and panel daemon.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag lines with the lifecycle action and correlation id
// of the request that produced them. NewNop supplies a silent logger for tests
// and for wiring code that has no logger yet.
package logging
