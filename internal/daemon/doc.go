// Package daemon runs the quizlined scheduler: the in-process replacement
// for the cron entries that used to drive each stage.
//
// Every stage with a non-zero interval gets its own goroutine and ticker.
// When ledger watching is enabled, writes to the ledger file trigger a
// debounced buffer check so the operator hears about a low READY buffer as
// soon as an item leaves it. A flock on the daemon lock file keeps a single
// scheduler per log directory.
//
// Stages still arbitrate through the ledger store; the daemon only decides
// when to invoke them and keeps the last outcome of each job for status
// reporting.
package daemon
