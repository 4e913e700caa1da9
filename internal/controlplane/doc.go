// Package controlplane is the HTTP client for the remote server control plane.
//
// It issues the start, stop, and status calls, decodes the status body, reads
// the Retry-After and Location polling hints, and classifies failures as
// *ConflictError (HTTP 409) or *ServerError (everything else).
package controlplane
