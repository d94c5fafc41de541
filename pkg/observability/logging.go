package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/palaver/pkg/domain"
)

// LogHooks returns lifecycle hooks that log dialog events at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	log := func(msg string) func(context.Context, *domain.DialogLifecycleEvent) {
		return func(ctx context.Context, e *domain.DialogLifecycleEvent) {
			logger.DebugContext(ctx, msg,
				"dialog_id", e.DialogID,
				"reason", e.Reason,
				"event", e.EventName,
				"depth", e.StackDepth,
			)
		}
	}
	return domain.LifecycleHooks{
		OnDialogBegin: log("dialog_begin"),
		OnDialogEnd:   log("dialog_end"),
		OnDialogEvent: log("dialog_event"),
	}
}
