// Package api defines the wire-format types for the panel's JSON API and a
// small client the CLI uses to talk to a running panel.
//
// # Key Types
//
// StatusResponse: the current server snapshot plus poll state.
//
// StartRequest: launch settings accepted by POST /api/start. Lists are JSON
// arrays here; the control-plane client comma-joins them.
//
// HistoryResponse: recorded transitions from the snapshot cache.
//
// PlayersResponse: the mcstatus.io player list for a running server.
//
// ErrorResponse: error message plus classification kind.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Error kinds mirror services.Kind so clients can map a failure back to the
// same exit guidance the in-process CLI path uses.
package api
