package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alexiswl/poreduck/internal/artifacts"
	"github.com/alexiswl/poreduck/internal/config"
	"github.com/alexiswl/poreduck/internal/logging"
	"github.com/alexiswl/poreduck/internal/metrics"
	"github.com/alexiswl/poreduck/internal/queue"
	"github.com/alexiswl/poreduck/internal/scheduler"
	"github.com/alexiswl/poreduck/internal/sentinel"
	"github.com/alexiswl/poreduck/internal/state"
)

// Discoverer returns archive names not yet tracked.
type Discoverer interface {
	Scan(known map[string]struct{}) ([]string, error)
}

// Signals exposes the producer's TRANSFERRING flag and the active-run marker.
type Signals interface {
	Transferring() bool
	Acquire() (sentinel.Releaser, error)
}

// Artifacts performs the post-basecall filesystem steps.
type Artifacts interface {
	RemoveExtracted(paths queue.Paths) error
	MoveFastq(paths queue.Paths) (artifacts.MoveResult, error)
	ArchiveOutput(paths queue.Paths) error
	Merge() (artifacts.MergeResult, error)
}

// Clock supplies the time and the wait between passes.
type Clock interface {
	Now() time.Time
	Wait(ctx context.Context, d time.Duration) error
}

// Deps are the collaborators of an Orchestrator. Metrics, Logger and Clock
// are optional.
type Deps struct {
	Scheduler scheduler.Client
	Store     state.Store
	Scanner   Discoverer
	Signals   Signals
	Artifacts Artifacts
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
	Clock     Clock
}

// Settings are the run parameters taken from configuration.
type Settings struct {
	Layout             queue.Layout
	MaxInFlight        int
	FailurePolicy      string
	MaxAttempts        int
	PollInterval       time.Duration
	MaxPollInterval    time.Duration
	IdlePasses         int
	Host               string
	Flowcell           string
	Kit                string
	Threads            int
	Barcoding          bool
	ExtractionCores    int
	ExtractionMemoryGB int
	BasecallMemoryGB   int
	ExtractionTemplate string
	BasecallTemplate   string
	// Once stops Run after a single pass, without the final merge.
	Once bool
}

// SettingsFromConfig derives run settings and reads job script templates.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	if cfg == nil {
		return Settings{}, errors.New("workflow: config required")
	}
	extractionTemplate, err := readTemplate(cfg.Scheduler.ExtractionTemplate)
	if err != nil {
		return Settings{}, err
	}
	basecallTemplate, err := readTemplate(cfg.Scheduler.BasecallTemplate)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Layout: queue.Layout{
			ReadsDir:      cfg.Paths.ReadsDir,
			ArchiveSuffix: cfg.ArchiveSuffix(),
			OutputDir:     cfg.OutputDir(),
			FastqDir:      cfg.FastqDir(),
			SubmissionDir: cfg.SubmissionDir(),
			OneDSquared:   cfg.OneDSquared(),
		},
		MaxInFlight:        cfg.Workflow.MaxInFlight,
		FailurePolicy:      cfg.Workflow.FailurePolicy,
		MaxAttempts:        cfg.Workflow.MaxAttempts,
		PollInterval:       cfg.PollInterval(),
		MaxPollInterval:    cfg.MaxPollInterval(),
		IdlePasses:         cfg.Workflow.IdlePassesBeforeBackoff,
		Host:               cfg.Scheduler.Host,
		Flowcell:           cfg.Basecall.Flowcell,
		Kit:                cfg.Basecall.Kit,
		Threads:            cfg.Basecall.Threads,
		Barcoding:          cfg.Basecall.Barcoding,
		ExtractionCores:    cfg.Basecall.ExtractionCores,
		ExtractionMemoryGB: cfg.Basecall.ExtractionMemoryGB,
		BasecallMemoryGB:   cfg.BasecallMemoryGB(),
		ExtractionTemplate: extractionTemplate,
		BasecallTemplate:   basecallTemplate,
	}, nil
}

func readTemplate(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read job template: %w", err)
	}
	return string(data), nil
}

// Orchestrator owns the tracked items and applies pipeline passes to them.
type Orchestrator struct {
	settings  Settings
	sched     scheduler.Client
	store     state.Store
	scanner   Discoverer
	signals   Signals
	artifacts Artifacts
	metrics   *metrics.Recorder
	logger    *slog.Logger
	clock     Clock

	items  *queue.Items
	gate   queue.Gate
	runID  string
	passes int
	// lost counts consecutive polls in which the scheduler had no record of
	// an in-flight job, keyed by item and stage.
	lost map[string]int
}

// New validates deps and returns an Orchestrator with no items loaded.
func New(settings Settings, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Scheduler == nil:
		return nil, errors.New("workflow: scheduler client required")
	case deps.Store == nil:
		return nil, errors.New("workflow: state store required")
	case deps.Scanner == nil:
		return nil, errors.New("workflow: scanner required")
	case deps.Signals == nil:
		return nil, errors.New("workflow: signals required")
	case deps.Artifacts == nil:
		return nil, errors.New("workflow: artifact handler required")
	}
	switch settings.FailurePolicy {
	case config.FailurePolicyRetry, config.FailurePolicyAbort:
	case "":
		settings.FailurePolicy = config.FailurePolicyRetry
	default:
		return nil, fmt.Errorf("workflow: unknown failure policy %q", settings.FailurePolicy)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = NewJitterClock(0)
	}
	items, _ := queue.NewItems()
	return &Orchestrator{
		settings:  settings,
		sched:     deps.Scheduler,
		store:     deps.Store,
		scanner:   deps.Scanner,
		signals:   deps.Signals,
		artifacts: deps.Artifacts,
		metrics:   deps.Metrics,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		clock:     clock,
		items:     items,
		gate:      queue.Gate{Ceiling: settings.MaxInFlight},
		runID:     newID(),
		lost:      make(map[string]int),
	}, nil
}

// RunID identifies this orchestrator in logs.
func (o *Orchestrator) RunID() string { return o.runID }

// Items returns deep copies of the tracked items, sorted by name.
func (o *Orchestrator) Items() []*queue.Item { return o.items.Snapshot() }

// persist writes the full item set in registration order.
func (o *Orchestrator) persist(ctx context.Context) error {
	if err := o.store.Save(context.WithoutCancel(ctx), o.items.All()); err != nil {
		return fmt.Errorf("persist state to %s: %w", o.store.Path(), err)
	}
	o.metrics.ObserveItems(o.items.All())
	return nil
}

func (o *Orchestrator) itemLogger(ctx context.Context, item *queue.Item, stage queue.StageName) *slog.Logger {
	ctx = logging.WithItem(ctx, item.Name)
	if stage != "" {
		ctx = logging.WithStage(ctx, string(stage))
	}
	return logging.WithContext(ctx, o.logger)
}
