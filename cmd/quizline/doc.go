// Command quizline runs single stage invocations against the publish queue
// ledger and offers helpers for planning topics and checking the setup.
//
// Every stage command prints one outcome line: the item it advanced, that
// nothing was eligible, or why it failed. Failures exit non-zero with a
// code that tells cron wrappers what went wrong (see exitCode).
package main
