package scheduler

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/alexiswl/poreduck/internal/queue"
)

// Torque drives TORQUE/PBS through qsub and tracejob.
type Torque struct {
	base
}

var torqueExitStatus = regexp.MustCompile(`Exit_status=(-?\d+)`)

func (t *Torque) Kind() Kind { return KindTorque }

func (t *Torque) Submit(ctx context.Context, req JobRequest) (queue.JobID, error) {
	args := []string{"-N", req.Name, "-o", req.StdoutPath, "-e", req.StderrPath}
	if req.WorkDir != "" {
		args = append(args, "-d", req.WorkDir)
	}
	node := "1"
	if req.Host != "" {
		node = req.Host
	}
	cores := req.Cores
	if cores <= 0 {
		cores = 1
	}
	args = append(args, "-l", "nodes="+node+":ppn="+strconv.Itoa(cores))
	if req.MemoryGB > 0 {
		args = append(args, "-l", "mem="+strconv.Itoa(req.MemoryGB)+"gb")
	}
	return t.submit(ctx, req, "qsub", args, parseTorqueJobID)
}

// parseTorqueJobID reads "123.server.domain".
func parseTorqueJobID(out string) (queue.JobID, bool) {
	line := firstLine(out)
	if idx := strings.IndexByte(line, '.'); idx >= 0 {
		line = line[:idx]
	}
	return parseDigits(line)
}

func (t *Torque) HasCommenced(ctx context.Context, id queue.JobID) (bool, error) {
	trace, _, err := t.trace(ctx, id)
	if err != nil {
		return false, err
	}
	return trace.running || trace.exited, nil
}

func (t *Torque) HasCompleted(ctx context.Context, id queue.JobID, checkFailure bool) (bool, error) {
	trace, raw, err := t.trace(ctx, id)
	if err != nil {
		return false, err
	}
	if !trace.exited {
		return false, nil
	}
	if checkFailure && trace.failed() {
		return true, &JobFailedError{JobID: id, Output: raw}
	}
	return true, nil
}

func (t *Torque) HasFailed(ctx context.Context, id queue.JobID) (bool, error) {
	trace, _, err := t.trace(ctx, id)
	if err != nil {
		return false, err
	}
	return trace.failed(), nil
}

func (t *Torque) trace(ctx context.Context, id queue.JobID) (tracejobSummary, string, error) {
	out, err := t.query(ctx, "tracejob", "-n", "7", id.String())
	if err != nil {
		return tracejobSummary{}, "", err
	}
	return parseTracejob(out), out, nil
}

type tracejobSummary struct {
	known      bool
	running    bool
	exited     bool
	exitStatus int
}

func parseTracejob(out string) tracejobSummary {
	var summary tracejobSummary
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "Job Queued"):
			summary.known = true
		case strings.Contains(line, "Job Run"):
			summary.known = true
			summary.running = true
		}
		if m := torqueExitStatus.FindStringSubmatch(line); m != nil {
			summary.known = true
			summary.exited = true
			summary.exitStatus, _ = strconv.Atoi(m[1])
		}
	}
	return summary
}

func (s tracejobSummary) failed() bool {
	if !s.known {
		return true
	}
	return s.exited && s.exitStatus != 0
}
