package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexiswl/poreduck/internal/queue"
)

var (
	// ErrSubmissionFailed marks a submission that produced no usable job id.
	ErrSubmissionFailed = errors.New("job submission failed")
	// ErrJobFailed marks a job that reached a failed terminal state.
	ErrJobFailed = errors.New("job failed")
	// ErrCommandTimeout marks a scheduler CLI call that exceeded its timeout.
	ErrCommandTimeout = errors.New("scheduler command timed out")
)

// SubmissionError carries the raw submit output so operators can see what
// the scheduler said.
type SubmissionError struct {
	Job    string
	Output string
	Err    error
}

func (e *SubmissionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "submit %s: %v", e.Job, ErrSubmissionFailed)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, "; scheduler output: %q", out)
	}
	return b.String()
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionFailed
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// JobFailedError reports a failed job together with the accounting output.
type JobFailedError struct {
	JobID  queue.JobID
	Output string
}

func (e *JobFailedError) Error() string {
	msg := fmt.Sprintf("job %s failed", e.JobID)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += fmt.Sprintf("; scheduler output: %q", out)
	}
	return msg
}

func (e *JobFailedError) Is(target error) bool {
	return target == ErrJobFailed
}
