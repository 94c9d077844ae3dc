// Package scheduler hides the differences between the SGE, TORQUE and SLURM
// command-line tools behind one Client interface.
//
// Submit renders a job script, hands it to qsub or sbatch and parses the job
// id from the reply. HasCommenced, HasCompleted and HasFailed read the
// accounting tools (qacct, tracejob, sacct) and reduce their text output to
// booleans. A job the scheduler has no record of is treated as failed, since
// nothing can be resumed in place.
//
// Every CLI call goes through an Executor that applies a per-call timeout and
// kills the whole process group when it fires, so a hung scheduler command
// cannot stall a pass indefinitely. Status queries can additionally be
// throttled with a shared rate limiter.
package scheduler
