package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/alexiswl/poreduck/internal/logging"
	"github.com/alexiswl/poreduck/internal/queue"
)

// Kind names a scheduler variant.
type Kind string

const (
	KindSGE    Kind = "sge"
	KindTorque Kind = "torque"
	KindSlurm  Kind = "slurm"
)

// Client submits jobs and answers status questions about them.
type Client interface {
	Kind() Kind
	Submit(ctx context.Context, req JobRequest) (queue.JobID, error)
	HasCommenced(ctx context.Context, id queue.JobID) (bool, error)
	// HasCompleted reports a terminal state. With checkFailure set, a failed
	// terminal state is returned as a *JobFailedError.
	HasCompleted(ctx context.Context, id queue.JobID, checkFailure bool) (bool, error)
	HasFailed(ctx context.Context, id queue.JobID) (bool, error)
}

// Option configures a client.
type Option func(*base)

// WithQueryRate throttles status queries to perSecond calls. Zero disables throttling.
func WithQueryRate(perSecond float64) Option {
	return func(b *base) {
		if perSecond > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New constructs the client for kind.
func New(kind string, exec Executor, opts ...Option) (Client, error) {
	if exec == nil {
		return nil, fmt.Errorf("scheduler %s: executor required", kind)
	}
	b := base{exec: exec, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = logging.NewComponentLogger(b.logger, "scheduler")
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindSGE:
		return &SGE{base: b}, nil
	case KindTorque:
		return &Torque{base: b}, nil
	case KindSlurm:
		return &Slurm{base: b}, nil
	default:
		return nil, fmt.Errorf("unsupported scheduler %q", kind)
	}
}

// base holds the plumbing shared by every variant.
type base struct {
	exec    Executor
	limiter *rate.Limiter
	logger  *slog.Logger
}

// submit writes the job script, runs the submit command and parses its reply.
func (b *base) submit(ctx context.Context, req JobRequest, binary string, args []string, parse func(string) (queue.JobID, bool)) (queue.JobID, error) {
	if err := WriteScript(req); err != nil {
		return queue.NoJob, &SubmissionError{Job: req.Name, Err: err}
	}
	args = append(args, req.ScriptPath)
	result, err := b.exec.Run(ctx, binary, args...)
	if err != nil {
		return queue.NoJob, &SubmissionError{Job: req.Name, Output: result.Combined(), Err: err}
	}
	if result.ExitCode != 0 {
		return queue.NoJob, &SubmissionError{
			Job:    req.Name,
			Output: result.Combined(),
			Err:    fmt.Errorf("%s exited with status %d", binary, result.ExitCode),
		}
	}
	id, ok := parse(result.Stdout)
	if !ok {
		return queue.NoJob, &SubmissionError{
			Job:    req.Name,
			Output: result.Combined(),
			Err:    fmt.Errorf("no numeric job id in %s reply", binary),
		}
	}
	b.logger.Debug("job submitted",
		logging.String("job", req.Name),
		logging.JobID(int64(id)),
		logging.String("script", req.ScriptPath),
	)
	return id, nil
}

// query runs a status command. A non-zero exit leaves empty output so that
// callers read it as "no record".
func (b *base) query(ctx context.Context, binary string, args ...string) (string, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	result, err := b.exec.Run(ctx, binary, args...)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		b.logger.Debug("status query returned non-zero",
			logging.String("command", binary),
			logging.Int("exit_code", result.ExitCode),
			logging.String("stderr", strings.TrimSpace(result.Stderr)),
		)
		return "", nil
	}
	return result.Stdout, nil
}

// parseDigits accepts a trimmed string made only of ASCII digits.
func parseDigits(value string) (queue.JobID, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return queue.NoJob, false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return queue.NoJob, false
		}
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return queue.NoJob, false
	}
	return queue.JobID(n), true
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
