// Package logging builds the slog loggers used by poreduck.
//
// New returns either a console handler tuned for people watching a long
// basecalling run in a terminal, or a JSON handler suited to log shipping.
// Both handlers understand the standard field names declared in context.go
// so pipeline code can tag lines with the run, pass, item, stage and job id
// without repeating itself.
//
// NewNop is provided for tests and for wiring code that has no logger yet.
package logging
