package scheduler_test

import (
	"context"
	"strings"
	"sync"

	"github.com/alexiswl/poreduck/internal/scheduler"
)

type call struct {
	binary string
	args   []string
}

// scriptedExecutor answers each binary with a canned result.
type scriptedExecutor struct {
	mu      sync.Mutex
	replies map[string]scheduler.Result
	errs    map[string]error
	calls   []call
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{replies: map[string]scheduler.Result{}, errs: map[string]error{}}
}

func (s *scriptedExecutor) reply(binary, stdout string, exitCode int) *scriptedExecutor {
	s.replies[binary] = scheduler.Result{Stdout: stdout, ExitCode: exitCode}
	return s
}

func (s *scriptedExecutor) Run(_ context.Context, binary string, args ...string) (scheduler.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{binary: binary, args: append([]string(nil), args...)})
	if err := s.errs[binary]; err != nil {
		return scheduler.Result{}, err
	}
	if result, ok := s.replies[binary]; ok {
		return result, nil
	}
	return scheduler.Result{ExitCode: 1, Stderr: binary + ": no reply scripted"}, nil
}

func (s *scriptedExecutor) lastArgs(binary string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].binary == binary {
			return strings.Join(s.calls[i].args, " ")
		}
	}
	return ""
}
