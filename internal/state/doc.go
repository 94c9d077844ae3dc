// Package state persists the tracked items so a run can be killed and
// resumed without resubmitting finished work.
//
// Two backends implement Store. The CSV table keeps the column layout
// operators already read and pass back with --resume; every save writes a
// temporary file beside the table and renames it into place, so a crash never
// leaves a truncated table behind. The SQLite backend stores the same rows
// keyed by item name and suits long runs with many batches.
//
// A table that cannot be parsed is reported as ErrCorruptState, which is
// fatal at startup.
package state
