// Package notifications delivers server lifecycle events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when no topic is set. Events are gated
// by the [notifications] flags so operators can silence transitions, actions,
// or errors independently.
package notifications
