// Package services defines shared utilities consumed by stage runners and
// their external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp ledger rows, topics, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry the
//     stage and operation that produced them and can be classified for
//     operator alerts and exit codes.
package services
