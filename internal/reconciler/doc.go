// Package reconciler keeps a local view of a remotely hosted game server and
// drives it toward the operator's desired state.
//
// The Reconciler polls the control plane on a schedule driven by the server's
// Retry-After hints, stops once a terminal status (RUNNING or STOPPED) is
// observed, and exposes start and stop actions that restart the cycle. At
// most one status check is armed at a time, results that arrive after Cancel
// are discarded, and concurrent actions are rejected with ErrActionInFlight.
//
// Subscribers receive an Update for every applied result. The panel daemon
// uses them to persist snapshots and send notifications; the CLI uses them to
// follow a transition until it settles.
package reconciler
