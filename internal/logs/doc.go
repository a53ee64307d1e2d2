// Package logs reads the quizline log file for the "quizline logs" command.
//
// Last returns the final lines with bounded memory, optionally filtered to a
// single stage. Follow streams lines appended afterwards, waking on fsnotify
// write events instead of polling, and restarts from the top when the file
// is truncated.
package logs
