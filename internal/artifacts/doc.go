// Package artifacts performs the filesystem side effects that follow a
// finished basecall: removing the extracted reads, relocating fastq output,
// re-archiving the basecaller folder and the end-of-run merge.
//
// Each operation is safe to repeat. A step that finds its work already done
// returns without error so the workflow can re-run it after a crash.
package artifacts
