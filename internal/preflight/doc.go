// Package preflight checks that quizline can run: data and log directories
// are usable, the ledger parses, and the approval backend is reachable.
//
// The CLI "quizline doctor" command prints every result. The scheduler daemon
// runs the same checks at startup and refuses to start on a failure.
package preflight
