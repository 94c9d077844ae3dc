// Command poreduck drives nanopore read archives through extraction and
// basecalling jobs on an HPC batch scheduler.
//
// "poreduck run" watches the reads directory while the sequencer is still
// transferring, submits jobs, cleans up after them and merges the resulting
// fastq files. The other subcommands inspect a run: "status" prints the
// status table, "check" reports missing binaries and unusable directories,
// "merge" re-runs the final fastq merge, and "config" manages the TOML file.
package main
