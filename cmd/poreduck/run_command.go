package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexiswl/poreduck/internal/artifacts"
	"github.com/alexiswl/poreduck/internal/config"
	"github.com/alexiswl/poreduck/internal/deps"
	"github.com/alexiswl/poreduck/internal/discovery"
	"github.com/alexiswl/poreduck/internal/logging"
	"github.com/alexiswl/poreduck/internal/metrics"
	"github.com/alexiswl/poreduck/internal/preflight"
	"github.com/alexiswl/poreduck/internal/scheduler"
	"github.com/alexiswl/poreduck/internal/sentinel"
	"github.com/alexiswl/poreduck/internal/state"
	"github.com/alexiswl/poreduck/internal/workflow"
)

type runOptions struct {
	resume bool
	once   bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract and basecall archives until the run is complete",
		Long: `Run watches the reads directory while the sequencer is transferring,
submits extraction and basecalling jobs, cleans up after them and merges the
fastq output once every archive is done.

Interrupting the command stops between steps; the status table is saved and
the run can be continued with --resume.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireRunConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPipeline(runCtx, cfg, runOptions{
				resume: ctx.overrides.StatusFile != "",
				once:   once,
			})
		},
	}

	cmd.Flags().StringVar(&ctx.overrides.StatusFile, "resume", "", "Continue from an existing status table")
	cmd.Flags().StringVar(&ctx.overrides.Scheduler, "scheduler", "", "Scheduler variant (sge, torque, slurm)")
	cmd.Flags().StringVar(&ctx.overrides.FailurePolicy, "failure-policy", "", "Action on a failed job (retry, abort)")
	cmd.Flags().IntVar(&ctx.maxInFlight, "max-in-flight", 0, "Maximum jobs submitted or running at once (0 is unlimited)")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single pass and exit")
	return cmd
}

// heldSignals hands the workflow a marker the command already holds, so the
// status table is never touched by a second concurrent run.
type heldSignals struct {
	sentinel.Signals
	marker *sentinel.Marker
}

func (h heldSignals) Acquire() (sentinel.Releaser, error) { return h.marker, nil }

func runPipeline(ctx context.Context, cfg *config.Config, opts runOptions) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	started := time.Now()
	logPath := logging.RunLogPath(cfg.LogDir(), started)
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.PruneRunLogs(logger, cfg.LogDir(), cfg.Logging.RetentionDays, logPath)

	if err := requireReady(cfg, logger); err != nil {
		return err
	}

	marker, err := sentinel.Acquire(cfg.ParentDir())
	if err != nil {
		return err
	}
	defer func() {
		if err := marker.Release(); err != nil {
			logger.Warn("release active-run marker failed", logging.Error(err))
		}
	}()

	statusFile := cfg.StatusFile()
	if opts.resume {
		if err := state.RequireExisting(statusFile); err != nil {
			return err
		}
	} else {
		backup, err := state.SetAside(statusFile)
		if err != nil {
			return err
		}
		if backup != "" {
			logging.WarnWithContext(logger, "existing status table moved aside", "state_backup",
				logging.String("status_file", statusFile),
				logging.String("backup", backup),
				logging.String(logging.FieldErrorHint, "pass --resume to continue a previous run"),
			)
		}
	}

	store, err := state.Open(cfg.State.Backend, statusFile)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := metrics.New()
	if cfg.Metrics.Bind != "" {
		server, err := metrics.NewServer(cfg.Metrics.Bind, recorder, logger)
		if err != nil {
			return err
		}
		serverCtx, cancelServer := context.WithCancel(ctx)
		served := make(chan error, 1)
		go func() { served <- server.Run(serverCtx) }()
		defer func() {
			cancelServer()
			if err := <-served; err != nil {
				logger.Warn("metrics server failed", logging.Error(err))
			}
		}()
	}

	executor := scheduler.CommandExecutor{
		Timeout: cfg.CommandTimeout(),
		Observe: func(binary string, elapsed time.Duration) {
			recorder.ObserveCommand(filepath.Base(binary), elapsed.Seconds())
		},
	}
	client, err := scheduler.New(cfg.Scheduler.Type, executor,
		scheduler.WithQueryRate(cfg.Scheduler.QueriesPerSecond),
		scheduler.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	settings, err := workflow.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}
	settings.Once = opts.once

	orchestrator, err := workflow.New(settings, workflow.Deps{
		Scheduler: client,
		Store:     store,
		Scanner: discovery.Scanner{
			ReadsDir:  cfg.Paths.ReadsDir,
			OutputDir: cfg.OutputDir(),
			Pattern:   cfg.Basecall.ArchivePattern,
		},
		Signals:   heldSignals{Signals: sentinel.Signals{Parent: cfg.ParentDir()}, marker: marker},
		Artifacts: artifacts.Local{FastqDir: cfg.FastqDir(), Barcoding: cfg.Basecall.Barcoding},
		Metrics:   recorder,
		Logger:    logger,
		Clock:     workflow.NewJitterClock(cfg.Workflow.JitterPercent),
	})
	if err != nil {
		return err
	}

	logger.Info("poreduck run starting",
		logging.String("reads_dir", cfg.Paths.ReadsDir),
		logging.String("scheduler", cfg.Scheduler.Type),
		logging.String("status_file", statusFile),
		logging.String("log_file", logPath),
		logging.Bool("resume", opts.resume),
	)

	err = orchestrator.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("run interrupted; status table saved",
			logging.String("status_file", statusFile),
			logging.Duration("elapsed", time.Since(started)),
		)
		return nil
	}
	if err != nil {
		logging.ErrorWithContext(logger, "run failed", "run_failed", logging.Error(err))
		return err
	}
	logger.Info("poreduck run finished", logging.Duration("elapsed", time.Since(started)))
	return nil
}

// requireReady fails when a blocking preflight check fails or a required
// binary is missing. Advisory problems are logged.
func requireReady(cfg *config.Config, logger *slog.Logger) error {
	results := preflight.RunAll(cfg)
	for _, result := range results {
		if !result.Passed && result.Advisory {
			logger.Warn("preflight warning",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
		}
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		return fmt.Errorf("preflight %s: %s", failed[0].Name, failed[0].Detail)
	}
	if missing := deps.Missing(preflight.CheckSystemDeps(cfg)); len(missing) > 0 {
		return fmt.Errorf("required binary %s: %s (run \"poreduck check\")", missing[0].Command, missing[0].Detail)
	}
	return nil
}
