package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/palaver/internal/logging"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
)

// TurnErrorHandler observes an error that escaped the pipeline. Returning nil
// suppresses it; returning another error translates it.
type TurnErrorHandler func(ctx context.Context, tc *turn.Context, err error) error

// Adapter is the channel independent half of a channel adapter. Concrete
// adapters embed it and implement turn.Adapter for delivery.
type Adapter struct {
	middleware  *MiddlewareSet
	onTurnError TurnErrorHandler
	logger      *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithOnTurnError configures the turn error handler.
func WithOnTurnError(h TurnErrorHandler) Option {
	return func(a *Adapter) {
		a.onTurnError = h
	}
}

// WithMiddleware registers middleware at construction.
func WithMiddleware(mw ...Middleware) Option {
	return func(a *Adapter) {
		a.middleware.Use(mw...)
	}
}

// NewAdapter creates the base adapter.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		middleware: NewMiddlewareSet(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Use registers middleware for every subsequent turn.
func (a *Adapter) Use(mw ...Middleware) *Adapter {
	a.middleware.Use(mw...)
	return a
}

// OnTurnError replaces the turn error handler.
func (a *Adapter) OnTurnError(h TurnErrorHandler) {
	a.onTurnError = h
}

// Logger returns the adapter's logger.
func (a *Adapter) Logger() *slog.Logger {
	return a.logger
}

// RunPipeline runs the middleware and then callback for the turn. A turn
// without an inbound activity skips middleware and runs callback directly.
// Errors go through the turn error handler once.
func (a *Adapter) RunPipeline(ctx context.Context, tc *turn.Context, callback Handler) error {
	if tc == nil {
		return fmt.Errorf("bot: run pipeline: turn context: %w", domain.ErrMissingArgument)
	}

	var err error
	if tc.Activity() != nil {
		err = a.middleware.ReceiveActivity(ctx, tc, callback)
	} else if callback != nil {
		err = callback(ctx, tc)
	}
	if err == nil {
		return nil
	}

	a.logger.Debug("turn failed", "err", err, "conversation", conversationID(tc))
	if a.onTurnError != nil {
		return a.onTurnError(ctx, tc, err)
	}
	return err
}

// ProcessActivity creates the turn context for an inbound activity and runs
// the pipeline. channel delivers the turn's outbound activities.
func (a *Adapter) ProcessActivity(ctx context.Context, channel turn.Adapter, activity *domain.Activity, callback Handler, opts ...turn.Option) error {
	if activity == nil {
		return fmt.Errorf("bot: process activity: %w", domain.ErrInvalidActivity)
	}
	return a.RunPipeline(ctx, turn.New(channel, activity, opts...), callback)
}

// ContinueConversation starts a proactive turn on the conversation the
// reference points to.
func (a *Adapter) ContinueConversation(ctx context.Context, channel turn.Adapter, ref domain.ConversationReference, callback Handler) error {
	if ref.Conversation.ID == "" {
		return fmt.Errorf("bot: continue conversation: %w", domain.ErrInvalidActivity)
	}
	return a.RunPipeline(ctx, turn.New(channel, ref.ContinuationActivity()), callback)
}

func conversationID(tc *turn.Context) string {
	if act := tc.Activity(); act != nil {
		return act.Conversation.ID
	}
	return ""
}
