// Package services defines shared utilities consumed by the reconciler, the
// control-plane client, and the panel daemon.
//
// Key responsibilities:
//   - Context helpers that stamp lifecycle action names and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and the classifiers that
//     turn a failure into a kind label or an HTTP status for the panel API.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the daemon and CLI.
package services
