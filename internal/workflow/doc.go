// Package workflow drives tracked items through the pipeline.
//
// An Orchestrator owns the in-memory item set and applies one pass at a time:
// submit extraction, poll extraction, submit basecalling, poll basecalling,
// then the three cleanup steps. Every mutation is persisted before the next
// one so a killed process resumes from the last recorded transition. All
// collaborators (scheduler client, store, discovery, signal files, artifact
// handler, clock) are injected through Deps.
//
// The orchestrator is single-threaded. Real parallelism lives in the batch
// scheduler; the only suspension point is the wait between passes.
package workflow
