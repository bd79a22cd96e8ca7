package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// UseCaseEvent describes one dispatched intent or one outbound API call.
type UseCaseEvent struct {
	// Name is "dispatch.<intent kind>" or "api.<op>".
	Name     string
	IntentID uuid.UUID // zero for API calls
	Ref      EntityRef
	Duration time.Duration
	Err      error
}

func (e UseCaseEvent) Success() bool { return e.Err == nil }

// UseCaseObserver receives use-case execution events. Implementations must
// be safe for concurrent use: API calls report from their own goroutines.
type UseCaseObserver interface {
	ObserveUseCase(ctx context.Context, event UseCaseEvent)
}

// NoopUseCaseObserver ignores all events.
type NoopUseCaseObserver struct{}

func (NoopUseCaseObserver) ObserveUseCase(context.Context, UseCaseEvent) {}

type logUseCaseObserver struct {
	logger *slog.Logger
}

// NewLogUseCaseObserver logs every event through logger: failures at error
// level, everything else at info.
func NewLogUseCaseObserver(logger *slog.Logger) UseCaseObserver {
	if logger == nil {
		return NoopUseCaseObserver{}
	}
	return &logUseCaseObserver{logger: logger.With("component", "engine")}
}

func (o *logUseCaseObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	attrs := []slog.Attr{
		slog.String("use_case", event.Name),
		slog.Int64("duration_ms", event.Duration.Milliseconds()),
	}
	if event.IntentID != uuid.Nil {
		attrs = append(attrs, slog.String("intent_id", event.IntentID.String()))
	}
	if event.Ref.Kind != "" {
		attrs = append(attrs, slog.String("entity", string(event.Ref.Kind)))
	}
	if event.Ref.ID != 0 {
		attrs = append(attrs, slog.Int64("id", int64(event.Ref.ID)))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
		o.logger.LogAttrs(ctx, slog.LevelError, "budget_use_case", attrs...)
		return
	}
	o.logger.LogAttrs(ctx, slog.LevelInfo, "budget_use_case", attrs...)
}

func observerOrNoop(obs UseCaseObserver) UseCaseObserver {
	if obs != nil {
		return obs
	}
	return NoopUseCaseObserver{}
}
