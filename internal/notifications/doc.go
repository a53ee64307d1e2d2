// Package notifications pushes operator alerts to ntfy.
//
// The stage runners report publishes, refill requests and failures here in
// addition to the approval channel, so an operator who only watches their
// phone still sees when the pipeline stalls. When no ntfy topic is
// configured the service degrades to a no-op.
package notifications
