// Package config loads, normalizes, and validates poreduck configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and applies command-line overrides. Directories left empty in
// the file are derived from the parent of the reads directory, matching the
// layout used on sequencing hosts: albacore/, fastq/, qsub_log/,
// poreduck_logs/ and status.csv sit beside the reads folder.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
