package http

import (
	"context"
	"sync"

	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
	"github.com/google/uuid"
)

// replyBuffer collects what a request-bound turn sends.
type replyBuffer struct {
	mu         sync.Mutex
	activities []*domain.Activity
}

func (b *replyBuffer) add(acts ...*domain.Activity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activities = append(b.activities, acts...)
}

func (b *replyBuffer) snapshot() []*domain.Activity {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*domain.Activity, len(b.activities))
	copy(out, b.activities)
	return out
}

var replyKey = turn.NewKey[*replyBuffer]("http.replies")

// Adapter delivers outbound activities in the HTTP response of the request
// that started the turn ("expect replies"). Activities sent outside such a
// turn, e.g. from ContinueConversation, go to the conversation's event
// stream subscribers.
type Adapter struct {
	*bot.Adapter
	streams *StreamManager
}

var _ turn.Adapter = (*Adapter)(nil)

// NewAdapter creates the HTTP channel adapter.
func NewAdapter(opts ...bot.Option) *Adapter {
	return &Adapter{
		Adapter: bot.NewAdapter(opts...),
		streams: NewStreamManager(),
	}
}

// Streams returns the per conversation event streams.
func (a *Adapter) Streams() *StreamManager { return a.streams }

// SendActivities implements turn.Adapter.
func (a *Adapter) SendActivities(ctx context.Context, tc *turn.Context, acts []*domain.Activity) ([]domain.ResourceResponse, error) {
	responses := make([]domain.ResourceResponse, len(acts))
	for i, act := range acts {
		if act.ID == "" {
			act.ID = uuid.NewString()
		}
		responses[i] = domain.ResourceResponse{ID: act.ID}
	}

	visible := make([]*domain.Activity, 0, len(acts))
	for _, act := range acts {
		if act.IsType(domain.ActivityTrace) && act.ChannelID != domain.EmulatorChannel {
			continue
		}
		visible = append(visible, act.Clone())
	}

	if buf, ok := turn.Get(tc, replyKey); ok {
		buf.add(visible...)
		return responses, nil
	}
	for _, act := range visible {
		a.streams.Publish(act.Conversation.ID, act)
	}
	return responses, nil
}

// UpdateActivity is not supported: replies are already part of a finished
// HTTP response.
func (a *Adapter) UpdateActivity(ctx context.Context, tc *turn.Context, act *domain.Activity) (*domain.ResourceResponse, error) {
	return nil, domain.ErrNotSupported
}

// DeleteActivity is not supported.
func (a *Adapter) DeleteActivity(ctx context.Context, tc *turn.Context, ref domain.ConversationReference) error {
	return domain.ErrNotSupported
}

// processRequest runs a turn whose replies are returned to the caller.
func (a *Adapter) processRequest(ctx context.Context, act *domain.Activity, handler bot.Handler) ([]*domain.Activity, error) {
	caller := domain.UserCaller()
	if act.IsType(domain.ActivityConversationUpdate) {
		caller = domain.Caller{Kind: domain.CallerChannel, AppID: act.ChannelID}
	}

	tc := turn.New(a, act, turn.WithCaller(caller))
	buf := &replyBuffer{}
	turn.Set(tc, replyKey, buf)

	if err := a.RunPipeline(ctx, tc, handler); err != nil {
		return nil, err
	}
	return buf.snapshot(), nil
}

// ContinueConversation runs a proactive turn. Its replies are published to
// the conversation's event stream.
func (a *Adapter) ContinueConversation(ctx context.Context, ref domain.ConversationReference, handler bot.Handler) error {
	return a.Adapter.ContinueConversation(ctx, a, ref, handler)
}
