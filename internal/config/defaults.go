package config

const (
	defaultSchedulerType      = "sge"
	defaultCommandTimeout     = 60
	defaultFlowcell           = "FLO-MIN106"
	defaultKit                = "SQK-LSK108"
	defaultThreads            = 4
	defaultArchivePattern     = "*.tar.gz"
	defaultExtractionCores    = 1
	defaultExtractionMemoryGB = 2
	defaultPollInterval       = 15
	defaultMaxPollInterval    = 300
	defaultIdlePasses         = 3
	defaultJitterPercent      = 10
	defaultFailurePolicy      = FailurePolicyRetry
	defaultMaxAttempts        = 3
	defaultStateBackend       = StateBackendCSV
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
)

// Scheduler variants.
const (
	SchedulerSGE    = "sge"
	SchedulerTorque = "torque"
	SchedulerSlurm  = "slurm"
)

// Failure policies applied when a job is found failed during a pass.
const (
	FailurePolicyRetry = "retry"
	FailurePolicyAbort = "abort"
)

// State backends.
const (
	StateBackendCSV    = "csv"
	StateBackendSQLite = "sqlite"
)

// OneDSquaredKit selects the 1D² basecaller and its alternate workspace.
const OneDSquaredKit = "SQK-LSK308"

// Basecaller entry points.
const (
	BasecallerBinary            = "read_fast5_basecaller.py"
	OneDSquaredBasecallerBinary = "full_1dsq_basecaller.py"
)

// KnownFlowcells lists flowcells accepted by the basecaller.
var KnownFlowcells = []string{"FLO-MIN107", "FLO-MIN106"}

// KnownKits lists sequencing kits accepted by the basecaller.
var KnownKits = []string{
	"SQK-LWP001", "SQK-NSK007", "VSK-VBK001", "SQK-RAS201", "SQK-RBK001", "SQK-LWB001",
	"SQK-RNA001", "SQK-RLI001", "SQK-RAD002", "SQK-RLB001", "SQK-RAB201", "SQK-LSK208",
	"SQK-LSK108", "SQK-RAD003", "SQK-DCS108", "SQK-PCS108", OneDSquaredKit,
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Scheduler: Scheduler{
			Type:           defaultSchedulerType,
			CommandTimeout: defaultCommandTimeout,
		},
		Basecall: Basecall{
			Flowcell:           defaultFlowcell,
			Kit:                defaultKit,
			Threads:            defaultThreads,
			ArchivePattern:     defaultArchivePattern,
			ExtractionCores:    defaultExtractionCores,
			ExtractionMemoryGB: defaultExtractionMemoryGB,
		},
		Workflow: Workflow{
			PollInterval:            defaultPollInterval,
			MaxPollInterval:         defaultMaxPollInterval,
			IdlePassesBeforeBackoff: defaultIdlePasses,
			JitterPercent:           defaultJitterPercent,
			FailurePolicy:           defaultFailurePolicy,
			MaxAttempts:             defaultMaxAttempts,
		},
		State: State{
			Backend: defaultStateBackend,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
