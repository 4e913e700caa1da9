// Package preflight provides readiness checks for the local directories and
// the remote control plane that mcpanel depends on.
//
// These checks run in two contexts:
//   - "mcpanel serve" calls RunAll before taking the panel lock and refuses
//     to start when a directory check fails.
//   - "mcpanel check" prints every result, including a live status request.
package preflight
