package workflow

import (
	"context"
	"fmt"

	"github.com/alexiswl/poreduck/internal/logging"
	"github.com/alexiswl/poreduck/internal/queue"
)

// Run holds the active-run marker, resumes state and loops passes. While the
// producer reports TRANSFERRING, each pass starts with discovery; one more
// discovery follows the flag clearing. Passes then continue until every item
// is cleaned up or failed permanently, after which per-item fastq files are
// merged. Once no job is outstanding, cleanup gets maxCleanupPasses passes
// before unfinished items are marked failed. Cancelling ctx stops between steps with state persisted.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx = logging.WithRunID(ctx, shortID(o.runID))
	logger := logging.WithContext(ctx, o.logger)

	marker, err := o.signals.Acquire()
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := marker.Release(); releaseErr != nil {
			logger.Warn("release active-run marker failed", logging.Error(releaseErr))
		}
	}()

	if err := o.Resume(ctx); err != nil {
		return err
	}

	wait := newBackoff(o.settings.PollInterval, o.settings.MaxPollInterval, o.settings.IdlePasses)
	finalScanDone := false
	cleanupPasses := 0
	for {
		transferring := o.signals.Transferring()
		discovered := 0
		if transferring || !finalScanDone {
			if discovered, err = o.discover(ctx); err != nil {
				return err
			}
			if !transferring {
				finalScanDone = true
				logger.Info("producer finished transferring; draining tracked items",
					logging.Int("items", o.items.Len()),
				)
			}
		}

		result, err := o.RunPass(ctx)
		if err != nil {
			return err
		}
		if o.settings.Once {
			return nil
		}
		if !transferring && o.items.Done() {
			break
		}
		if !transferring && o.items.JobsDone() {
			cleanupPasses++
			if cleanupPasses >= maxCleanupPasses {
				if err := o.abandonCleanup(ctx, cleanupPasses); err != nil {
					return err
				}
				break
			}
		}

		delay := wait.next(result.Changed() || discovered > 0)
		logger.Debug("waiting for next pass", logging.Duration("interval", delay))
		if err := o.clock.Wait(ctx, delay); err != nil {
			return err
		}
	}

	merged, err := o.artifacts.Merge()
	if err != nil {
		return fmt.Errorf("merge fastq output: %w", err)
	}
	counts := o.items.PhaseCounts()
	logger.Info("run complete",
		logging.Int("items", o.items.Len()),
		logging.Int("cleaned_up", counts[queue.PhaseCleanedUp]),
		logging.Int("failed", counts[queue.PhaseFailed]),
		logging.Int("merged_inputs", merged.Inputs),
		logging.Any("merged_outputs", merged.Outputs),
	)
	return nil
}

// maxCleanupPasses bounds the passes spent retrying post-basecall steps once
// every scheduler job has ended.
const maxCleanupPasses = 5

// abandonCleanup marks items whose post-basecall steps keep failing as failed
// so the merge can run without them.
func (o *Orchestrator) abandonCleanup(ctx context.Context, passes int) error {
	for _, item := range o.items.All() {
		if item.Settled() {
			continue
		}
		reason := fmt.Sprintf("post-basecall cleanup unfinished after %d passes", passes)
		item.MarkFailed(reason)
		logging.ErrorWithContext(o.itemLogger(ctx, item, ""), "giving up on item cleanup", "cleanup_abandoned",
			logging.Bool("folder_removed", item.FolderRemoved),
			logging.Bool("fastq_moved", item.FastqMoved),
			logging.Bool("output_archived", item.OutputArchived),
			logging.String(logging.FieldErrorHint, "finish the remaining steps by hand, then run poreduck merge"),
		)
	}
	return o.persist(ctx)
}

// discover registers new archives and persists them. It returns the number
// of items added.
func (o *Orchestrator) discover(ctx context.Context) (int, error) {
	names, err := o.scanner.Scan(o.items.Names())
	if err != nil {
		return 0, fmt.Errorf("discover archives: %w", err)
	}
	if len(names) == 0 {
		return 0, nil
	}
	for _, name := range names {
		if err := o.items.Add(queue.NewItem(name)); err != nil {
			return 0, err
		}
		logging.WithContext(logging.WithItem(ctx, name), o.logger).Info("new archive discovered")
	}
	return len(names), o.persist(ctx)
}
