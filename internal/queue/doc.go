// Package queue models the work items tracked by the pipeline driver.
//
// An Item is one archived batch of reads moving through two scheduler stages,
// extraction then basecalling, followed by three local cleanup steps. Each
// stage records whether a job was submitted, observed running and finished,
// together with the scheduler job id. Transition methods refuse moves that
// would break the ordering between stages, and Reset implements the
// failure-reset used to resubmit a failed stage.
//
// The package also provides the concurrency gate that caps how many items
// may have a job in flight at once.
package queue
