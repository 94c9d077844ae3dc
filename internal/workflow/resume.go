package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexiswl/poreduck/internal/logging"
	"github.com/alexiswl/poreduck/internal/queue"
	"github.com/alexiswl/poreduck/internal/state"
)

// Resume loads the persisted table, absorbs scheduler progress made while no
// process was running, and resets stages whose jobs failed in the meantime.
// Status query errors are logged and leave the stage unchanged.
func (o *Orchestrator) Resume(ctx context.Context) error {
	loaded, err := o.store.Load(ctx)
	if err != nil {
		return err
	}
	items, err := queue.NewItems(loaded...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", state.ErrCorruptState, o.store.Path(), err)
	}
	o.items = items
	if items.Len() == 0 {
		return nil
	}
	o.logger.Info("resuming from state table",
		logging.String("path", o.store.Path()),
		logging.Int("items", items.Len()),
	)

	for _, item := range items.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if item.Failed {
			continue
		}
		for _, stage := range []queue.StageName{queue.StageExtraction, queue.StageBasecall} {
			if err := o.reconcileStage(ctx, item, stage); err != nil {
				return err
			}
		}
	}
	return o.persist(ctx)
}

func (o *Orchestrator) reconcileStage(ctx context.Context, item *queue.Item, name queue.StageName) error {
	logger := o.itemLogger(ctx, item, name)
	stage := item.Stage(name)

	if stage.Submitted && !stage.JobID.Valid() {
		logger.Warn("stage recorded as submitted without a job id; resubmitting",
			logging.String(logging.FieldEventType, "resume_missing_job_id"),
		)
		item.ResetStage(name)
		return nil
	}
	if !stage.JobID.Valid() {
		return nil
	}

	if !stage.Complete {
		if !stage.Commenced {
			started, err := o.sched.HasCommenced(ctx, stage.JobID)
			if err != nil {
				return o.statusQueryFailed(ctx, logger, stage.JobID, err)
			}
			if started {
				if err := stage.MarkCommenced(); err != nil {
					return err
				}
			}
		}
		done, err := o.sched.HasCompleted(ctx, stage.JobID, false)
		if err != nil {
			return o.statusQueryFailed(ctx, logger, stage.JobID, err)
		}
		if done {
			if err := stage.MarkComplete(); err != nil {
				return err
			}
			logger.Info("job finished while not running",
				logging.JobID(int64(stage.JobID)),
			)
		}
	}

	// Outputs already consumed downstream make the job's fate irrelevant.
	if name == queue.StageExtraction && item.Basecall.Submitted {
		return nil
	}
	if name == queue.StageBasecall && item.FastqMoved {
		return nil
	}
	failed, err := o.sched.HasFailed(ctx, stage.JobID)
	if err != nil {
		return o.statusQueryFailed(ctx, logger, stage.JobID, err)
	}
	if failed {
		o.metrics.Failed(name)
		o.resetAfterFailure(logger, item, name, fmt.Sprintf("%s job %s failed", name, stage.JobID))
	}
	return nil
}

// statusQueryFailed logs a status query error. Only cancellation propagates.
func (o *Orchestrator) statusQueryFailed(ctx context.Context, logger *slog.Logger, id queue.JobID, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	logger.Warn("scheduler status query failed; will retry next pass",
		logging.JobID(int64(id)),
		logging.Error(err),
		logging.String(logging.FieldEventType, "status_query_failed"),
		logging.String(logging.FieldErrorHint, "check the scheduler CLI and scheduler.command_timeout"),
	)
	return nil
}
