package preflight

import (
	"github.com/alexiswl/poreduck/internal/config"
)

// Result reports the outcome of a single preflight check.
// Advisory results are reported but never block a run.
type Result struct {
	Name     string
	Passed   bool
	Advisory bool
	Detail   string
}

// RunAll executes the filesystem checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// The reads directory must already exist; extracted folders are removed from it.
	results = append(results, CheckDirectoryAccess("Reads directory", cfg.Paths.ReadsDir))
	results = append(results, CheckDirectoryAccess("Run directory", cfg.ParentDir()))

	results = append(results,
		CheckCreatableDirectory("Output directory", cfg.OutputDir()),
		CheckCreatableDirectory("Fastq directory", cfg.FastqDir()),
		CheckCreatableDirectory("Submission directory", cfg.SubmissionDir()),
		CheckCreatableDirectory("Log directory", cfg.LogDir()),
	)

	results = append(results, CheckFreeSpace("Output free space", cfg.OutputDir(), MinFreeBytes))
	return results
}

// Failed returns the blocking results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Advisory {
			failed = append(failed, r)
		}
	}
	return failed
}
