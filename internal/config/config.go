package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/alexiswl/poreduck/internal/queue"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration. Empty values other than ReadsDir
// are derived from the parent of ReadsDir.
type Paths struct {
	ReadsDir      string `toml:"reads_dir"`
	OutputDir     string `toml:"output_dir"`
	FastqDir      string `toml:"fastq_dir"`
	SubmissionDir string `toml:"submission_dir"`
	LogDir        string `toml:"log_dir"`
	StatusFile    string `toml:"status_file"`
}

// Scheduler selects the batch system and how its CLIs are invoked.
type Scheduler struct {
	Type               string  `toml:"type"`
	Host               string  `toml:"host"`
	ExtractionTemplate string  `toml:"extraction_template"`
	BasecallTemplate   string  `toml:"basecall_template"`
	CommandTimeout     int     `toml:"command_timeout"`
	QueriesPerSecond   float64 `toml:"queries_per_second"`
}

// Basecall describes the chemistry and job resources.
type Basecall struct {
	Flowcell           string `toml:"flowcell"`
	Kit                string `toml:"kit"`
	Threads            int    `toml:"threads"`
	Barcoding          bool   `toml:"barcoding"`
	ArchivePattern     string `toml:"archive_pattern"`
	ExtractionCores    int    `toml:"extraction_cores"`
	ExtractionMemoryGB int    `toml:"extraction_memory_gb"`
}

// Workflow contains pass timing, throttling and failure handling.
type Workflow struct {
	PollInterval            int    `toml:"poll_interval"`
	MaxPollInterval         int    `toml:"max_poll_interval"`
	IdlePassesBeforeBackoff int    `toml:"idle_passes_before_backoff"`
	JitterPercent           int    `toml:"jitter_percent"`
	MaxInFlight             int    `toml:"max_in_flight"`
	FailurePolicy           string `toml:"failure_policy"`
	MaxAttempts             int    `toml:"max_attempts"`
}

// State selects the persistence backend for the status table.
type State struct {
	Backend string `toml:"backend"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for poreduck.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Scheduler Scheduler `toml:"scheduler"`
	Basecall  Basecall  `toml:"basecall"`
	Workflow  Workflow  `toml:"workflow"`
	State     State     `toml:"state"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
}

// Overrides carries command-line values that take precedence over the file.
type Overrides struct {
	ReadsDir      string
	StatusFile    string
	Scheduler     string
	FailurePolicy string
	MaxInFlight   *int
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/poreduck/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		projectPath, err := filepath.Abs("poreduck.toml")
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
			return projectPath, true, nil
		}
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

// Apply merges command-line overrides and re-validates the result.
func (c *Config) Apply(o Overrides) error {
	if v := strings.TrimSpace(o.ReadsDir); v != "" {
		c.Paths.ReadsDir = v
	}
	if v := strings.TrimSpace(o.StatusFile); v != "" {
		c.Paths.StatusFile = v
	}
	if v := strings.TrimSpace(o.Scheduler); v != "" {
		c.Scheduler.Type = v
	}
	if v := strings.TrimSpace(o.FailurePolicy); v != "" {
		c.Workflow.FailurePolicy = v
	}
	if o.MaxInFlight != nil {
		c.Workflow.MaxInFlight = *o.MaxInFlight
	}
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

// RequireReadsDir reports an error when no reads directory is configured.
func (c *Config) RequireReadsDir() error {
	if c.Paths.ReadsDir == "" {
		return errors.New("paths.reads_dir is required (set it in the config file or pass --reads-dir)")
	}
	return nil
}

// ParentDir is the directory holding the reads folder and the signal files.
func (c *Config) ParentDir() string {
	if c.Paths.ReadsDir == "" {
		return ""
	}
	return filepath.Dir(c.Paths.ReadsDir)
}

func (c *Config) derived(value, name string) string {
	if value != "" {
		return value
	}
	parent := c.ParentDir()
	if parent == "" {
		return ""
	}
	return filepath.Join(parent, name)
}

// OutputDir holds one basecaller output folder per item.
func (c *Config) OutputDir() string { return c.derived(c.Paths.OutputDir, "albacore") }

// FastqDir receives relocated and merged fastq files.
func (c *Config) FastqDir() string { return c.derived(c.Paths.FastqDir, "fastq") }

// SubmissionDir holds job scripts and scheduler stdout/stderr logs.
func (c *Config) SubmissionDir() string { return c.derived(c.Paths.SubmissionDir, "qsub_log") }

// LogDir holds per-run log files.
func (c *Config) LogDir() string { return c.derived(c.Paths.LogDir, "poreduck_logs") }

// StatusFile is the persisted status table for the configured backend.
func (c *Config) StatusFile() string {
	name := "status.csv"
	if c.State.Backend == StateBackendSQLite {
		name = "status.db"
	}
	return c.derived(c.Paths.StatusFile, name)
}

// StatusFileIsDefault reports whether the status file location was derived.
func (c *Config) StatusFileIsDefault() bool {
	return c.Paths.StatusFile == ""
}

// PollInterval is the base delay between passes.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

// MaxPollInterval caps the backoff applied to idle passes.
func (c *Config) MaxPollInterval() time.Duration {
	return time.Duration(c.Workflow.MaxPollInterval) * time.Second
}

// CommandTimeout bounds every scheduler CLI invocation.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Scheduler.CommandTimeout) * time.Second
}

// OneDSquared reports whether the 1D² chemistry is selected.
func (c *Config) OneDSquared() bool {
	return c.Basecall.Kit == OneDSquaredKit
}

// ArchiveSuffix is the input archive suffix selected by archive_pattern.
func (c *Config) ArchiveSuffix() string {
	suffix, _ := queue.ArchiveSuffix(c.Basecall.ArchivePattern)
	return suffix
}

// BasecallerBinary is the basecaller executable for the configured kit.
func (c *Config) BasecallerBinary() string {
	if c.OneDSquared() {
		return OneDSquaredBasecallerBinary
	}
	return BasecallerBinary
}

// BasecallMemoryGB mirrors the basecaller's memory appetite per worker thread.
func (c *Config) BasecallMemoryGB() int {
	if c.OneDSquared() {
		return 4 + 4*c.Basecall.Threads
	}
	return 4 + 2*c.Basecall.Threads
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.OutputDir(), c.FastqDir(), c.SubmissionDir(), c.LogDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
