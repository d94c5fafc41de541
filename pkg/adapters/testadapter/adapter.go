// Package testadapter provides an in-memory channel for exercising bots in
// tests. Outbound activities are queued instead of delivered and can be read
// back in order.
package testadapter

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
)

// Adapter is a channel whose replies stay in memory.
type Adapter struct {
	*bot.Adapter

	mu      sync.Mutex
	ref     domain.ConversationReference
	caller  domain.Caller
	replies []*domain.Activity
	seq     int
	botOpts []bot.Option
}

var _ turn.Adapter = (*Adapter)(nil)

// Option configures the test adapter.
type Option func(*Adapter)

// WithReference sets the conversation inbound activities belong to.
func WithReference(ref domain.ConversationReference) Option {
	return func(a *Adapter) {
		a.ref = ref
	}
}

// WithCaller sets the identity that starts every turn.
func WithCaller(c domain.Caller) Option {
	return func(a *Adapter) {
		a.caller = c
	}
}

// WithBotOptions configures the embedded pipeline.
func WithBotOptions(opts ...bot.Option) Option {
	return func(a *Adapter) {
		a.botOpts = append(a.botOpts, opts...)
	}
}

// DefaultReference is the conversation used when none is configured.
func DefaultReference() domain.ConversationReference {
	return domain.ConversationReference{
		ChannelID:    "test",
		ServiceURL:   "https://test.localhost",
		User:         domain.ChannelAccount{ID: "user1", Name: "User1"},
		Bot:          domain.ChannelAccount{ID: "bot", Name: "Bot"},
		Conversation: domain.ConversationAccount{ID: "convo1", Name: "Conversation1"},
		Locale:       "en-US",
	}
}

// New creates a test adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		ref:    DefaultReference(),
		caller: domain.UserCaller(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Adapter = bot.NewAdapter(a.botOpts...)
	return a
}

// Reference returns the conversation the adapter talks in.
func (a *Adapter) Reference() domain.ConversationReference {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ref
}

// MakeActivity creates an inbound message from the configured user.
func (a *Adapter) MakeActivity(text string) *domain.Activity {
	act := domain.NewMessage(text)
	a.address(act)
	return act
}

// address fills routing fields the activity leaves empty and gives it an id.
func (a *Adapter) address(act *domain.Activity) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	if act.ID == "" {
		act.ID = strconv.Itoa(a.seq)
	}
	if act.Type == "" {
		act.Type = domain.ActivityMessage
	}
	if act.ChannelID == "" {
		act.ChannelID = a.ref.ChannelID
	}
	if act.ServiceURL == "" {
		act.ServiceURL = a.ref.ServiceURL
	}
	if act.From.ID == "" {
		act.From = a.ref.User
	}
	if act.Recipient.ID == "" {
		act.Recipient = a.ref.Bot
	}
	if act.Conversation.ID == "" {
		act.Conversation = a.ref.Conversation
	}
	if act.Locale == "" {
		act.Locale = a.ref.Locale
	}
	if act.Timestamp.IsZero() {
		act.Timestamp = time.Now().UTC()
	}
}

// ProcessActivity runs one turn for act, filling in the conversation's
// routing fields first.
func (a *Adapter) ProcessActivity(ctx context.Context, act *domain.Activity, callback bot.Handler) error {
	if act == nil {
		return fmt.Errorf("testadapter: process activity: %w", domain.ErrInvalidActivity)
	}
	a.address(act)
	return a.Adapter.ProcessActivity(ctx, a, act, callback, turn.WithCaller(a.caller))
}

// SendText runs one turn for a user message.
func (a *Adapter) SendText(ctx context.Context, text string, callback bot.Handler) error {
	return a.ProcessActivity(ctx, domain.NewMessage(text), callback)
}

// ContinueConversation runs a proactive turn on the adapter's conversation.
func (a *Adapter) ContinueConversation(ctx context.Context, callback bot.Handler) error {
	return a.Adapter.ContinueConversation(ctx, a, a.Reference(), callback)
}

// SendActivities implements turn.Adapter. Trace activities are only kept on
// the emulator channel, like real channels do.
func (a *Adapter) SendActivities(ctx context.Context, tc *turn.Context, acts []*domain.Activity) ([]domain.ResourceResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	responses := make([]domain.ResourceResponse, len(acts))
	for i, act := range acts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.seq++
		id := act.ID
		if id == "" {
			id = strconv.Itoa(a.seq)
		}
		responses[i] = domain.ResourceResponse{ID: id}

		if act.IsType(domain.ActivityTrace) && act.ChannelID != domain.EmulatorChannel {
			continue
		}
		cp := act.Clone()
		cp.ID = id
		a.replies = append(a.replies, cp)
	}
	return responses, nil
}

// UpdateActivity implements turn.Adapter by replacing a queued reply.
func (a *Adapter) UpdateActivity(ctx context.Context, tc *turn.Context, act *domain.Activity) (*domain.ResourceResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, r := range a.replies {
		if r.ID == act.ID {
			a.replies[i] = act.Clone()
			return &domain.ResourceResponse{ID: act.ID}, nil
		}
	}
	return nil, fmt.Errorf("testadapter: update %q: %w", act.ID, domain.ErrNotFound)
}

// DeleteActivity implements turn.Adapter by removing a queued reply.
func (a *Adapter) DeleteActivity(ctx context.Context, tc *turn.Context, ref domain.ConversationReference) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.replies = slices.DeleteFunc(a.replies, func(r *domain.Activity) bool {
		return r.ID == ref.ActivityID
	})
	return nil
}

// NextReply dequeues the oldest reply, or returns nil.
func (a *Adapter) NextReply() *domain.Activity {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.replies) == 0 {
		return nil
	}
	next := a.replies[0]
	a.replies = a.replies[1:]
	return next
}

// Replies returns the queued replies without dequeuing them.
func (a *Adapter) Replies() []*domain.Activity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.replies)
}
