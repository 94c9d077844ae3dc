// Package logs finds and tails the per-run log files poreduck writes into the
// log directory. It backs "poreduck logs", including follow mode while a run
// is still active.
package logs
