// Package config loads, normalizes, and validates mcpanel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MCPANEL_API_KEY. The Config type centralizes every knob the panel daemon and
// CLI need, from the control-plane routes to the poller's retry cadence.
//
// Always obtain settings through this package so downstream code receives
// sanitized URLs, canonical log formats, and clear validation errors.
package config
