package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItem is the key for work item names.
	FieldItem = "item"
	// FieldStage is the key for pipeline stage names (extraction, basecall).
	FieldStage = "stage"
	// FieldJobID is the key for scheduler job identifiers.
	FieldJobID = "job_id"
	// FieldAttempt counts submissions of one stage.
	FieldAttempt = "attempt"
	// FieldRunID identifies one invocation of the pipeline driver.
	FieldRunID = "run_id"
	// FieldPassID identifies one pass over the tracked items.
	FieldPassID = "pass_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
)

type contextKey string

const (
	itemKey   contextKey = "item"
	stageKey  contextKey = "stage"
	runIDKey  contextKey = "run_id"
	passIDKey contextKey = "pass_id"
)

func WithItem(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, itemKey, name)
}

func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

func WithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey, id)
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	fields := make([]slog.Attr, 0, 4)
	if v, ok := stringFromContext(ctx, runIDKey); ok {
		fields = append(fields, slog.String(FieldRunID, v))
	}
	if v, ok := stringFromContext(ctx, passIDKey); ok {
		fields = append(fields, slog.String(FieldPassID, v))
	}
	if v, ok := stringFromContext(ctx, itemKey); ok {
		fields = append(fields, slog.String(FieldItem, v))
	}
	if v, ok := stringFromContext(ctx, stageKey); ok {
		fields = append(fields, slog.String(FieldStage, v))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
