package mcp

import (
	"context"
	"sync"

	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
	"github.com/google/uuid"
)

// ChannelID identifies activities that arrive through MCP.
const ChannelID = "mcp"

type transcript struct {
	mu         sync.Mutex
	activities []*domain.Activity
}

var transcriptKey = turn.NewKey[*transcript]("mcp.transcript")

// Adapter collects each turn's replies so they can be returned as the
// result of the tool call that started it.
type Adapter struct {
	*bot.Adapter
	botID string
}

var _ turn.Adapter = (*Adapter)(nil)

// NewAdapter creates the MCP channel adapter.
func NewAdapter(opts ...bot.Option) *Adapter {
	return &Adapter{Adapter: bot.NewAdapter(opts...), botID: "palaver"}
}

// SendActivities implements turn.Adapter.
func (a *Adapter) SendActivities(ctx context.Context, tc *turn.Context, acts []*domain.Activity) ([]domain.ResourceResponse, error) {
	t, ok := turn.Get(tc, transcriptKey)
	if !ok {
		return nil, domain.ErrNotSupported
	}

	responses := make([]domain.ResourceResponse, len(acts))
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, act := range acts {
		if act.ID == "" {
			act.ID = uuid.NewString()
		}
		responses[i] = domain.ResourceResponse{ID: act.ID}
		if act.IsType(domain.ActivityTrace) {
			continue
		}
		t.activities = append(t.activities, act.Clone())
	}
	return responses, nil
}

// UpdateActivity is not supported.
func (a *Adapter) UpdateActivity(ctx context.Context, tc *turn.Context, act *domain.Activity) (*domain.ResourceResponse, error) {
	return nil, domain.ErrNotSupported
}

// DeleteActivity is not supported.
func (a *Adapter) DeleteActivity(ctx context.Context, tc *turn.Context, ref domain.ConversationReference) error {
	return domain.ErrNotSupported
}

// Send runs a message turn for the user in the conversation and returns the
// bot's replies.
func (a *Adapter) Send(ctx context.Context, conversationID, userID, text string, handler bot.Handler) ([]*domain.Activity, error) {
	act := domain.NewMessage(text)
	act.ID = uuid.NewString()
	act.ChannelID = ChannelID
	act.From = domain.ChannelAccount{ID: userID, Role: "user"}
	act.Recipient = domain.ChannelAccount{ID: a.botID, Role: "bot"}
	act.Conversation = domain.ConversationAccount{ID: conversationID}

	tc := turn.New(a, act)
	t := &transcript{}
	turn.Set(tc, transcriptKey, t)

	if err := a.RunPipeline(ctx, tc, handler); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activities, nil
}
