package palaver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/palaver/internal/logging"
	"github.com/aretw0/palaver/pkg/adapters/memory"
	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/dialogs"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/observability"
	pmw "github.com/aretw0/palaver/pkg/persistence/middleware"
	"github.com/aretw0/palaver/pkg/ports"
	"github.com/aretw0/palaver/pkg/session"
	"github.com/aretw0/palaver/pkg/state"
	"github.com/aretw0/palaver/pkg/turn"
)

// Version is the release of the palaver module. Overridden at build time
// with -ldflags "-X github.com/aretw0/palaver.Version=...".
var Version = "0.1.0"

// DialogStateProperty is the conversation state property holding the stack.
const DialogStateProperty = "DialogState"

// ErrorReply is sent to the user when a turn fails.
const ErrorReply = "Sorry, something went wrong. Please try again."

// Bot wires storage, turn serialization, state scopes and a root dialog into
// a handler that any channel adapter can run.
type Bot struct {
	root       dialogs.Dialog
	extra      []dialogs.Dialog
	storage    ports.Storage
	storageMW  []pmw.Middleware
	locker     ports.DistributedLocker
	lockTTL    time.Duration
	metrics    *observability.Metrics
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	errorReply string
	welcome    string

	conversation *state.BotState
	user         *state.BotState
	dialogState  *state.PropertyAccessor[*dialogs.DialogState]
	dialogs      *dialogs.DialogSet
	sessions     *session.Manager
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithStorage sets the storage backend. Defaults to an in-memory store.
func WithStorage(s ports.Storage) Option {
	return func(b *Bot) {
		b.storage = s
	}
}

// WithStorageMiddleware decorates the storage, e.g. with encryption or PII
// masking. The first middleware is the outermost.
func WithStorageMiddleware(mws ...pmw.Middleware) Option {
	return func(b *Bot) {
		b.storageMW = append(b.storageMW, mws...)
	}
}

// WithLocker serializes turns of a conversation across processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(b *Bot) {
		b.locker = l
	}
}

// WithLockTTL sets the expiry of distributed turn locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(b *Bot) {
		b.lockTTL = ttl
	}
}

// WithMetrics records turn and dialog metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bot) {
		b.metrics = m
	}
}

// WithLifecycleHooks registers dialog lifecycle hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = b.hooks.Merge(hooks)
	}
}

// WithDialogs registers dialogs the root dialog can begin by id.
func WithDialogs(ds ...dialogs.Dialog) Option {
	return func(b *Bot) {
		b.extra = append(b.extra, ds...)
	}
}

// WithLogger sets a custom structured logger for the bot.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithErrorReply overrides the message sent when a turn fails. An empty
// reply disables it.
func WithErrorReply(text string) Option {
	return func(b *Bot) {
		b.errorReply = text
	}
}

// WithWelcome sends text when a conversationUpdate starts a conversation.
func WithWelcome(text string) Option {
	return func(b *Bot) {
		b.welcome = text
	}
}

// New creates a Bot whose conversations run root.
func New(root dialogs.Dialog, opts ...Option) (*Bot, error) {
	if root == nil {
		return nil, fmt.Errorf("palaver: root dialog: %w", domain.ErrMissingArgument)
	}
	return NewFunc(func(*Bot) (dialogs.Dialog, error) { return root, nil }, opts...)
}

// RootFunc builds the root dialog once the bot's storage and state scopes
// exist, so the dialog can keep accessors on them.
type RootFunc func(b *Bot) (dialogs.Dialog, error)

// NewFunc creates a Bot whose root dialog is built by build.
func NewFunc(build RootFunc, opts ...Option) (*Bot, error) {
	b := &Bot{
		logger:     logging.NewNop(),
		errorReply: ErrorReply,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.storage == nil {
		b.storage = memory.NewStore()
	}
	b.storage = pmw.Chain(b.storage, b.storageMW...)

	b.hooks = b.hooks.Merge(observability.LogHooks(b.logger))
	if b.metrics != nil {
		b.hooks = b.hooks.Merge(b.metrics.Hooks())
	}

	b.conversation = state.NewConversationState(b.storage)
	b.user = state.NewUserState(b.storage)
	b.dialogState = state.NewPropertyAccessor[*dialogs.DialogState](b.conversation, DialogStateProperty)
	b.dialogs = dialogs.NewDialogSet(b.dialogState, dialogs.WithHooks(b.hooks))

	root, err := build(b)
	if err != nil {
		return nil, fmt.Errorf("palaver: build root dialog: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("palaver: root dialog: %w", domain.ErrMissingArgument)
	}
	b.root = root
	if err := b.dialogs.Add(root); err != nil {
		return nil, fmt.Errorf("palaver: %w", err)
	}
	if err := b.dialogs.Add(b.extra...); err != nil {
		return nil, fmt.Errorf("palaver: %w", err)
	}

	sessionOpts := []session.Option{session.WithLogger(b.logger)}
	if b.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(b.locker))
	}
	if b.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(b.lockTTL))
	}
	b.sessions = session.NewManager(sessionOpts...)
	return b, nil
}

// Hooks returns the lifecycle hooks of the bot's dialogs, including the
// logging and metrics hooks. Components pass them to their inner sets.
func (b *Bot) Hooks() domain.LifecycleHooks { return b.hooks }

// Storage returns the decorated storage.
func (b *Bot) Storage() ports.Storage { return b.storage }

// ConversationState returns the conversation scope.
func (b *Bot) ConversationState() *state.BotState { return b.conversation }

// UserState returns the user scope.
func (b *Bot) UserState() *state.BotState { return b.user }

// DialogState returns the accessor of the persisted dialog stack.
func (b *Bot) DialogState() *state.PropertyAccessor[*dialogs.DialogState] { return b.dialogState }

// Dialogs returns the bot's dialog set.
func (b *Bot) Dialogs() *dialogs.DialogSet { return b.dialogs }

// Middleware returns the pipeline the bot needs, outermost first: metrics,
// per conversation serialization, logging and state auto-save.
func (b *Bot) Middleware() []bot.Middleware {
	var mws []bot.Middleware
	if b.metrics != nil {
		mws = append(mws, b.metrics.Middleware())
	}
	return append(mws,
		b.sessions.Middleware(),
		bot.LoggingMiddleware(b.logger),
		state.NewAutoSaveStateMiddleware(b.conversation, b.user),
	)
}

// Install registers the middleware and turn error handler on a channel
// adapter's pipeline.
func (b *Bot) Install(a *bot.Adapter) {
	a.Use(b.Middleware()...)
	a.OnTurnError(b.onTurnError)
}

// Handler runs the root dialog for each turn.
func (b *Bot) Handler() bot.Handler {
	return b.OnTurn
}

// OnTurn continues the active dialog or begins the root dialog.
func (b *Bot) OnTurn(ctx context.Context, tc *turn.Context) error {
	act := tc.Activity()
	if act.IsType(domain.ActivityConversationUpdate) {
		if b.welcome == "" {
			return nil
		}
		_, err := tc.SendText(ctx, b.welcome)
		return err
	}
	if _, err := b.dialogs.Run(ctx, tc, b.root.ID()); err != nil {
		return err
	}
	return nil
}

func (b *Bot) onTurnError(ctx context.Context, tc *turn.Context, err error) error {
	var conversation string
	if act := tc.Activity(); act != nil {
		conversation = act.Conversation.ID
	}
	b.logger.Error("turn failed", "err", err, "conversation", conversation)

	// A conflicting writer already moved the conversation on; the user's
	// message is answered by whichever turn won.
	if errors.Is(err, domain.ErrConcurrencyConflict) || b.errorReply == "" {
		return err
	}
	if _, sendErr := tc.SendText(ctx, b.errorReply); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}
