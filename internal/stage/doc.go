// Package stage runs one pipeline step per invocation against the ledger.
//
// Each Runner method loads a snapshot, picks at most one candidate by ledger
// order, consults the approval gateway when the edge is guarded, and commits
// through a conditional single-item update. The approval wait never holds
// the ledger lock; the commit re-checks that the row is still where the
// snapshot saw it and reports ErrConflict otherwise.
//
// Every invocation ends with an Outcome whose String form is the one-line
// summary operators see in logs and alerts.
package stage
