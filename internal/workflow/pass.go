package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexiswl/poreduck/internal/artifacts"
	"github.com/alexiswl/poreduck/internal/config"
	"github.com/alexiswl/poreduck/internal/logging"
	"github.com/alexiswl/poreduck/internal/queue"
	"github.com/alexiswl/poreduck/internal/scheduler"
)

// PassResult summarises one pass.
type PassResult struct {
	PassID    string
	Submitted int
	Started   int
	Completed int
	Failed    int
	CleanedUp int
	InFlight  int
}

// Changed reports whether the pass moved any item forward.
func (r PassResult) Changed() bool {
	return r.Submitted+r.Started+r.Completed+r.Failed+r.CleanedUp > 0
}

// RunPass applies every pipeline step to the tracked items once. Submission
// failures, persistence failures and job failures under the abort policy are
// returned; everything else is item-scoped.
func (o *Orchestrator) RunPass(ctx context.Context) (PassResult, error) {
	o.passes++
	result := PassResult{PassID: newID()}
	ctx = logging.WithRunID(ctx, shortID(o.runID))
	ctx = logging.WithPassID(ctx, shortID(result.PassID))

	steps := []func(context.Context, *PassResult) error{
		func(ctx context.Context, r *PassResult) error { return o.submitStage(ctx, r, queue.StageExtraction) },
		func(ctx context.Context, r *PassResult) error { return o.pollStage(ctx, r, queue.StageExtraction) },
		func(ctx context.Context, r *PassResult) error { return o.submitStage(ctx, r, queue.StageBasecall) },
		func(ctx context.Context, r *PassResult) error { return o.pollStage(ctx, r, queue.StageBasecall) },
		o.removeExtracted,
		o.moveFastq,
		o.archiveOutput,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := step(ctx, &result); err != nil {
			return result, err
		}
	}
	if err := o.persist(ctx); err != nil {
		return result, err
	}
	result.InFlight = queue.InFlightCount(o.items.All())
	o.metrics.PassCompleted()

	logger := logging.WithContext(ctx, o.logger)
	attrs := []logging.Attr{
		logging.Int("pass", o.passes),
		logging.Int("submitted", result.Submitted),
		logging.Int("completed", result.Completed),
		logging.Int("failed", result.Failed),
		logging.Int("cleaned_up", result.CleanedUp),
		logging.Int("in_flight", result.InFlight),
		logging.Int("items", o.items.Len()),
	}
	if result.Changed() {
		logger.Info("pass complete", logging.Args(attrs...)...)
	} else {
		logger.Debug("pass complete", logging.Args(attrs...)...)
	}
	return result, nil
}

// submitStage submits jobs for every eligible item while the gate admits them.
func (o *Orchestrator) submitStage(ctx context.Context, result *PassResult, name queue.StageName) error {
	for _, item := range o.items.All() {
		if !o.readyToSubmit(item, name) {
			continue
		}
		logger := o.itemLogger(ctx, item, name)
		if !o.gate.TryAdmit(o.items.All()) {
			logger.Debug("in-flight ceiling reached; deferring submissions",
				logging.Int("max_in_flight", o.gate.Ceiling),
			)
			return nil
		}

		paths := o.settings.Layout.PathsFor(item.Name)
		req := o.extractionRequest(paths)
		if name == queue.StageBasecall {
			req = o.basecallRequest(paths)
		}
		id, err := o.sched.Submit(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			_ = o.persist(ctx)
			return fmt.Errorf("item %s: %w", item.Name, err)
		}

		if name == queue.StageBasecall {
			err = item.SubmitBasecall(id)
		} else {
			err = item.Extraction.MarkSubmitted(id)
		}
		if err != nil {
			return fmt.Errorf("item %s: %w", item.Name, err)
		}
		logger.Info("job submitted",
			logging.JobID(int64(id)),
			logging.Attempt(item.Stage(name).Attempts),
		)
		o.metrics.Submitted(name)
		result.Submitted++
		if err := o.persist(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) readyToSubmit(item *queue.Item, name queue.StageName) bool {
	if item.Failed {
		return false
	}
	if name == queue.StageBasecall {
		return item.Extraction.Complete && !item.Basecall.Submitted
	}
	return !item.Extraction.Submitted
}

// pollStage asks the scheduler about every in-flight job of one stage.
func (o *Orchestrator) pollStage(ctx context.Context, result *PassResult, name queue.StageName) error {
	for _, item := range o.items.All() {
		if item.Failed {
			continue
		}
		stage := item.Stage(name)
		if !stage.Submitted || stage.Complete {
			continue
		}
		logger := o.itemLogger(ctx, item, name)
		changed := false

		if !stage.Commenced {
			started, err := o.sched.HasCommenced(ctx, stage.JobID)
			if err != nil {
				if err := o.statusQueryFailed(ctx, logger, stage.JobID, err); err != nil {
					return err
				}
				continue
			}
			if started {
				if err := stage.MarkCommenced(); err != nil {
					return fmt.Errorf("item %s: %w", item.Name, err)
				}
				logger.Info("job started", logging.JobID(int64(stage.JobID)))
				result.Started++
				changed = true
			}
		}

		done, err := o.sched.HasCompleted(ctx, stage.JobID, true)
		var jobErr *scheduler.JobFailedError
		switch {
		case errors.As(err, &jobErr):
			if err := o.stageFailed(ctx, logger, result, item, name, jobErr); err != nil {
				return err
			}
			changed = true
		case err != nil:
			if err := o.statusQueryFailed(ctx, logger, stage.JobID, err); err != nil {
				return err
			}
		case done:
			delete(o.lost, lostKey(item, name))
			if err := stage.MarkComplete(); err != nil {
				return fmt.Errorf("item %s: %w", item.Name, err)
			}
			logger.Info("job complete", logging.JobID(int64(stage.JobID)))
			result.Completed++
			changed = true
		default:
			lost, err := o.jobLost(ctx, item, name, stage.JobID)
			if err != nil {
				if err := o.statusQueryFailed(ctx, logger, stage.JobID, err); err != nil {
					return err
				}
				break
			}
			if lost {
				jobErr = &scheduler.JobFailedError{JobID: stage.JobID, Output: "job unknown to the scheduler"}
				if err := o.stageFailed(ctx, logger, result, item, name, jobErr); err != nil {
					return err
				}
				changed = true
			}
		}

		if changed {
			if err := o.persist(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// lostJobPolls is how many consecutive polls must find no record of a
// pending job before it is treated as failed. sacct can lag a fresh sbatch.
const lostJobPolls = 2

func lostKey(item *queue.Item, name queue.StageName) string {
	return item.Name + "/" + string(name)
}

// jobLost asks the scheduler whether an unfinished job has failed, which for a
// job that has not ended means the scheduler no longer knows about it.
func (o *Orchestrator) jobLost(ctx context.Context, item *queue.Item, name queue.StageName, id queue.JobID) (bool, error) {
	key := lostKey(item, name)
	failed, err := o.sched.HasFailed(ctx, id)
	if err != nil {
		return false, err
	}
	if !failed {
		delete(o.lost, key)
		return false, nil
	}
	o.lost[key]++
	if o.lost[key] < lostJobPolls {
		return false, nil
	}
	delete(o.lost, key)
	return true, nil
}

// stageFailed resets the stage under the retry policy and returns the job
// failure under the abort policy.
func (o *Orchestrator) stageFailed(ctx context.Context, logger *slog.Logger, result *PassResult, item *queue.Item, name queue.StageName, jobErr *scheduler.JobFailedError) error {
	o.metrics.Failed(name)
	result.Failed++
	if o.settings.FailurePolicy == config.FailurePolicyAbort {
		_ = o.persist(ctx)
		return fmt.Errorf("item %s %s: %w", item.Name, name, jobErr)
	}
	o.resetAfterFailure(logger, item, name, jobErr.Error())
	return nil
}

// removeExtracted deletes extracted reads once basecalling is done. A missing
// archive is logged and the step recorded as done.
func (o *Orchestrator) removeExtracted(ctx context.Context, result *PassResult) error {
	for _, item := range o.items.All() {
		if item.Failed || !item.Basecall.Complete || item.FolderRemoved {
			continue
		}
		logger := o.itemLogger(ctx, item, "")
		paths := o.settings.Layout.PathsFor(item.Name)
		err := o.artifacts.RemoveExtracted(paths)
		switch {
		case errors.Is(err, artifacts.ErrMissingArchive):
			logging.WarnWithContext(logger, "archive missing; leaving extracted folder in place", "missing_archive",
				logging.String("archive", paths.ArchivePath),
				logging.String(logging.FieldErrorHint, "the extracted reads are now the only copy"),
			)
		case err != nil:
			logging.WarnWithContext(logger, "removing extracted folder failed; will retry", "remove_failed",
				logging.Error(err),
			)
			continue
		default:
			logger.Debug("extracted folder removed", logging.String("path", paths.ExtractPath))
		}
		if err := item.MarkFolderRemoved(); err != nil {
			return fmt.Errorf("item %s: %w", item.Name, err)
		}
		result.CleanedUp++
		if err := o.persist(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) moveFastq(ctx context.Context, result *PassResult) error {
	for _, item := range o.items.All() {
		if item.Failed || !item.Basecall.Complete || item.FastqMoved {
			continue
		}
		logger := o.itemLogger(ctx, item, "")
		moved, err := o.artifacts.MoveFastq(o.settings.Layout.PathsFor(item.Name))
		if err != nil {
			logging.WarnWithContext(logger, "moving fastq output failed; will retry", "fastq_move_failed",
				logging.Error(err),
			)
			continue
		}
		if moved.Files == 0 {
			logging.WarnWithContext(logger, "basecaller produced no passed fastq files", "fastq_empty",
				logging.String(logging.FieldErrorHint, "check the basecall job log"),
			)
		}
		logger.Info("fastq moved", logging.Int("files", moved.Files), logging.Bool("summary", moved.Summary))
		if err := item.MarkFastqMoved(); err != nil {
			return fmt.Errorf("item %s: %w", item.Name, err)
		}
		result.CleanedUp++
		if err := o.persist(ctx); err != nil {
			return err
		}
	}
	return nil
}

// archiveOutput re-compresses the basecaller folder after its fastq files
// have been relocated.
func (o *Orchestrator) archiveOutput(ctx context.Context, result *PassResult) error {
	for _, item := range o.items.All() {
		if item.Failed || !item.Basecall.Complete || !item.FastqMoved || item.OutputArchived {
			continue
		}
		logger := o.itemLogger(ctx, item, "")
		paths := o.settings.Layout.PathsFor(item.Name)
		if err := o.artifacts.ArchiveOutput(paths); err != nil {
			logging.WarnWithContext(logger, "archiving basecaller output failed; will retry", "archive_failed",
				logging.Error(err),
			)
			continue
		}
		logger.Info("basecaller output archived", logging.String("archive", paths.OutputArchivePath))
		if err := item.MarkOutputArchived(); err != nil {
			return fmt.Errorf("item %s: %w", item.Name, err)
		}
		result.CleanedUp++
		if err := o.persist(ctx); err != nil {
			return err
		}
	}
	return nil
}
