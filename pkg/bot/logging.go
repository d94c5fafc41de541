package bot

import (
	"context"
	"log/slog"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
)

// LoggingMiddleware writes a structured transcript of the turn: the inbound
// activity, every outbound activity and the turn outcome.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return MiddlewareFunc(func(ctx context.Context, tc *turn.Context, next NextDelegate) error {
		in := tc.Activity()
		log := logger.With(
			"channel", in.ChannelID,
			"conversation", in.Conversation.ID,
		)
		log.Info("activity received", "type", in.Type, "from", in.From.ID, "text", in.Text)

		tc.OnSendActivities(func(ctx context.Context, tc *turn.Context, acts []*domain.Activity, next turn.SendNext) ([]domain.ResourceResponse, error) {
			for _, a := range acts {
				log.Info("activity sent", "type", a.Type, "text", a.Text)
			}
			return next(ctx)
		})

		err := next(ctx)
		if err != nil {
			log.Error("turn failed", "err", err)
			return err
		}
		log.Debug("turn completed", "responded", tc.Responded())
		return nil
	})
}
