package deps

// SchedulerRequirements lists the CLI tools a scheduler variant needs on the
// submission host. Unknown variants need nothing.
func SchedulerRequirements(kind string) []Requirement {
	switch kind {
	case "sge":
		return []Requirement{
			{Name: "qsub", Command: "qsub", Description: "Submits SGE jobs"},
			{Name: "qacct", Command: "qacct", Description: "Reads SGE accounting for finished jobs"},
			{Name: "qstat", Command: "qstat", Description: "Reports pending and running SGE jobs"},
		}
	case "torque":
		return []Requirement{
			{Name: "qsub", Command: "qsub", Description: "Submits TORQUE jobs"},
			{Name: "tracejob", Command: "tracejob", Description: "Reads TORQUE job history"},
		}
	case "slurm":
		return []Requirement{
			{Name: "sbatch", Command: "sbatch", Description: "Submits SLURM jobs"},
			{Name: "sacct", Command: "sacct", Description: "Reads SLURM job accounting"},
		}
	default:
		return nil
	}
}

// ComputeRequirements lists tools the submitted jobs run. They must exist on
// the compute nodes; the submission host only reports them.
func ComputeRequirements(basecaller string) []Requirement {
	return []Requirement{
		{Name: "pigz", Command: "pigz", Description: "Decompresses read archives", Optional: true},
		{Name: "tar", Command: "tar", Description: "Unpacks read archives", Optional: true},
		{Name: "basecaller", Command: basecaller, Description: "Basecalls extracted reads", Optional: true},
	}
}
