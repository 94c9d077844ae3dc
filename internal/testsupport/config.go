package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alexiswl/poreduck/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a fresh temp directory. The reads
// directory is created; every other directory is derived from its parent.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ReadsDir = filepath.Join(base, "run", "reads")
	if err := os.MkdirAll(cfgVal.Paths.ReadsDir, 0o755); err != nil {
		t.Fatalf("mkdir reads dir: %v", err)
	}
	cfgVal.Workflow.PollInterval = 1
	cfgVal.Workflow.MaxPollInterval = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithScheduler sets the scheduler variant.
func WithScheduler(kind string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.Type = kind
	}
}

// WithStateBackend selects the status table backend.
func WithStateBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.State.Backend = backend
	}
}

// WithArchivePattern sets the discovery pattern for input archives.
func WithArchivePattern(pattern string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Basecall.ArchivePattern = pattern
	}
}

// WithMaxInFlight sets the in-flight job ceiling.
func WithMaxInFlight(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxInFlight = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the SGE toolchain and the
// extraction tools are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"qsub", "qacct", "qstat", "pigz", "tar"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.ParentDir())
}
