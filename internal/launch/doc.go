// Package launch models the configuration sent with a server start action:
// the server type, game version, and optional datapack and mod URLs.
//
// Requests are normalized and validated locally so a malformed reference never
// reaches the control plane.
package launch
