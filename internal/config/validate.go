package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/alexiswl/poreduck/internal/queue"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateBasecall(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateState(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateScheduler() error {
	switch c.Scheduler.Type {
	case SchedulerSGE, SchedulerTorque, SchedulerSlurm:
	default:
		return fmt.Errorf("scheduler.type: unsupported value %q (want sge, torque or slurm)", c.Scheduler.Type)
	}
	if c.Scheduler.CommandTimeout <= 0 {
		return errors.New("scheduler.command_timeout must be positive")
	}
	if c.Scheduler.QueriesPerSecond < 0 {
		return errors.New("scheduler.queries_per_second must be zero or positive")
	}
	for name, path := range map[string]string{
		"scheduler.extraction_template": c.Scheduler.ExtractionTemplate,
		"scheduler.basecall_template":   c.Scheduler.BasecallTemplate,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) validateBasecall() error {
	if !slices.Contains(KnownFlowcells, c.Basecall.Flowcell) {
		return fmt.Errorf("basecall.flowcell: unknown flowcell %q", c.Basecall.Flowcell)
	}
	if !slices.Contains(KnownKits, c.Basecall.Kit) {
		return fmt.Errorf("basecall.kit: unknown kit %q", c.Basecall.Kit)
	}
	if c.Basecall.Threads <= 0 {
		return errors.New("basecall.threads must be positive")
	}
	if c.Basecall.ExtractionCores <= 0 {
		return errors.New("basecall.extraction_cores must be positive")
	}
	if c.Basecall.ExtractionMemoryGB <= 0 {
		return errors.New("basecall.extraction_memory_gb must be positive")
	}
	if !doublestar.ValidatePattern(c.Basecall.ArchivePattern) {
		return fmt.Errorf("basecall.archive_pattern: invalid pattern %q", c.Basecall.ArchivePattern)
	}
	if _, ok := queue.ArchiveSuffix(c.Basecall.ArchivePattern); !ok {
		return fmt.Errorf("basecall.archive_pattern: %q must end in one of %v", c.Basecall.ArchivePattern, queue.ArchiveSuffixes)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive")
	}
	if c.Workflow.MaxPollInterval < c.Workflow.PollInterval {
		return errors.New("workflow.max_poll_interval must be at least workflow.poll_interval")
	}
	if c.Workflow.IdlePassesBeforeBackoff <= 0 {
		return errors.New("workflow.idle_passes_before_backoff must be positive")
	}
	if c.Workflow.JitterPercent < 0 || c.Workflow.JitterPercent > 50 {
		return errors.New("workflow.jitter_percent must be between 0 and 50")
	}
	if c.Workflow.MaxInFlight < 0 {
		return errors.New("workflow.max_in_flight must be zero (unlimited) or positive")
	}
	if c.Workflow.MaxAttempts < 0 {
		return errors.New("workflow.max_attempts must be zero (unlimited) or positive")
	}
	switch c.Workflow.FailurePolicy {
	case FailurePolicyRetry, FailurePolicyAbort:
	default:
		return fmt.Errorf("workflow.failure_policy: unsupported value %q (want retry or abort)", c.Workflow.FailurePolicy)
	}
	return nil
}

func (c *Config) validateState() error {
	switch c.State.Backend {
	case StateBackendCSV, StateBackendSQLite:
		return nil
	default:
		return fmt.Errorf("state.backend: unsupported value %q (want csv or sqlite)", c.State.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}
