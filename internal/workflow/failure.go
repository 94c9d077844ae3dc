package workflow

import (
	"log/slog"

	"github.com/alexiswl/poreduck/internal/logging"
	"github.com/alexiswl/poreduck/internal/queue"
)

// resetAfterFailure applies the failure-reset transition and marks the item
// permanently failed once its attempts are used up.
func (o *Orchestrator) resetAfterFailure(logger *slog.Logger, item *queue.Item, name queue.StageName, reason string) {
	attempts := item.Stage(name).Attempts
	item.ResetStage(name)
	if o.settings.MaxAttempts > 0 && attempts >= o.settings.MaxAttempts {
		item.MarkFailed(reason)
		logging.ErrorWithContext(logger, "stage failed too many times; giving up on item", "item_failed",
			logging.Int("attempts", attempts),
			logging.String("reason", reason),
			logging.String(logging.FieldErrorHint, "inspect the scheduler logs in the submission directory"),
		)
		return
	}
	logging.WarnWithContext(logger, "job failed; stage reset for resubmission", "stage_reset",
		logging.Int("attempts", attempts),
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, "inspect the scheduler logs in the submission directory"),
	)
}
