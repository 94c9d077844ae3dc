package scheduler

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/alexiswl/poreduck/internal/queue"
)

// Slurm drives SLURM through sbatch and sacct.
type Slurm struct {
	base
}

var slurmVerboseID = regexp.MustCompile(`Submitted batch job (\d+)`)

var slurmTerminalStates = map[string]struct{}{
	"COMPLETED":     {},
	"FAILED":        {},
	"CANCELLED":     {},
	"TIMEOUT":       {},
	"OUT_OF_MEMORY": {},
	"NODE_FAIL":     {},
	"PREEMPTED":     {},
	"BOOT_FAIL":     {},
	"DEADLINE":      {},
}

func (s *Slurm) Kind() Kind { return KindSlurm }

func (s *Slurm) Submit(ctx context.Context, req JobRequest) (queue.JobID, error) {
	args := []string{"--parsable", "--job-name", req.Name, "--output", req.StdoutPath, "--error", req.StderrPath}
	if req.WorkDir != "" {
		args = append(args, "--chdir", req.WorkDir)
	}
	if req.Cores > 0 {
		args = append(args, "--cpus-per-task", strconv.Itoa(req.Cores))
	}
	if req.MemoryGB > 0 {
		args = append(args, "--mem", strconv.Itoa(req.MemoryGB)+"G")
	}
	if req.Host != "" {
		args = append(args, "--nodelist", req.Host)
	}
	return s.submit(ctx, req, "sbatch", args, parseSlurmJobID)
}

// parseSlurmJobID reads `sbatch --parsable` output ("123" or "123;cluster")
// and falls back to "Submitted batch job 123".
func parseSlurmJobID(out string) (queue.JobID, bool) {
	if m := slurmVerboseID.FindStringSubmatch(out); m != nil {
		return parseDigits(m[1])
	}
	line := firstLine(out)
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	return parseDigits(line)
}

func (s *Slurm) HasCommenced(ctx context.Context, id queue.JobID) (bool, error) {
	row, _, err := s.account(ctx, id)
	if err != nil {
		return false, err
	}
	return row.state == "RUNNING" || row.state == "COMPLETING" || row.terminal(), nil
}

func (s *Slurm) HasCompleted(ctx context.Context, id queue.JobID, checkFailure bool) (bool, error) {
	row, raw, err := s.account(ctx, id)
	if err != nil {
		return false, err
	}
	if !row.terminal() {
		return false, nil
	}
	if checkFailure && row.failed() {
		return true, &JobFailedError{JobID: id, Output: raw}
	}
	return true, nil
}

func (s *Slurm) HasFailed(ctx context.Context, id queue.JobID) (bool, error) {
	row, _, err := s.account(ctx, id)
	if err != nil {
		return false, err
	}
	return row.failed(), nil
}

func (s *Slurm) account(ctx context.Context, id queue.JobID) (sacctRow, string, error) {
	out, err := s.query(ctx, "sacct", "-j", id.String(), "-X", "-n", "-P", "-o", "JobID,State,ExitCode")
	if err != nil {
		return sacctRow{}, "", err
	}
	return parseSacct(out, id), out, nil
}

type sacctRow struct {
	known    bool
	state    string
	exitCode string
}

// parseSacct picks the allocation row for id from parsable sacct output.
func parseSacct(out string, id queue.JobID) sacctRow {
	var row sacctRow
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimSpace(line), "|")
		if len(fields) < 2 || fields[0] != id.String() {
			continue
		}
		row.known = true
		// "CANCELLED by 1000" carries the cancelling uid.
		if state := strings.Fields(fields[1]); len(state) > 0 {
			row.state = state[0]
		}
		if len(fields) > 2 {
			row.exitCode = strings.TrimSpace(fields[2])
		}
	}
	return row
}

func (r sacctRow) terminal() bool {
	_, ok := slurmTerminalStates[r.state]
	return ok
}

func (r sacctRow) failed() bool {
	if !r.known {
		return true
	}
	if !r.terminal() {
		return false
	}
	return r.state != "COMPLETED" || (r.exitCode != "" && r.exitCode != "0:0")
}
