package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScheduler()
	c.Basecall.Flowcell = strings.ToUpper(strings.TrimSpace(c.Basecall.Flowcell))
	c.Basecall.Kit = strings.ToUpper(strings.TrimSpace(c.Basecall.Kit))
	c.Basecall.ArchivePattern = strings.TrimSpace(c.Basecall.ArchivePattern)
	if c.Basecall.ArchivePattern == "" {
		c.Basecall.ArchivePattern = defaultArchivePattern
	}
	c.Workflow.FailurePolicy = strings.ToLower(strings.TrimSpace(c.Workflow.FailurePolicy))
	if c.Workflow.FailurePolicy == "" {
		c.Workflow.FailurePolicy = defaultFailurePolicy
	}
	c.State.Backend = strings.ToLower(strings.TrimSpace(c.State.Backend))
	if c.State.Backend == "" {
		c.State.Backend = defaultStateBackend
	}
	c.normalizeLogging()
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.reads_dir", &c.Paths.ReadsDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.fastq_dir", &c.Paths.FastqDir},
		{"paths.submission_dir", &c.Paths.SubmissionDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.status_file", &c.Paths.StatusFile},
		{"scheduler.extraction_template", &c.Scheduler.ExtractionTemplate},
		{"scheduler.basecall_template", &c.Scheduler.BasecallTemplate},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeScheduler() {
	c.Scheduler.Type = strings.ToLower(strings.TrimSpace(c.Scheduler.Type))
	if c.Scheduler.Type == "" {
		c.Scheduler.Type = defaultSchedulerType
	}
	c.Scheduler.Host = strings.TrimSpace(c.Scheduler.Host)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
