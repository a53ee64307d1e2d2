// Package queue owns the publish-queue ledger: the ordered list of quiz
// topics and their lifecycle status.
//
// Two backends share the Store interface. FileStore keeps the ledger as a
// CSV file replaced atomically on every save and serializes writers with an
// advisory lock file next to the ledger. SQLiteStore keeps rows in a
// modernc.org/sqlite database with a per-row version used for optimistic
// conditional updates. Both preserve passthrough columns so collaborators
// can attach their own fields without the core understanding them.
//
// transitions.go encodes the legal status edges, their guards and the
// reject policies the stage runners apply.
package queue
