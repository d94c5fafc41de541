package dialogs_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/palaver/pkg/adapters/memory"
	"github.com/aretw0/palaver/pkg/dialogs"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/state"
	"github.com/aretw0/palaver/pkg/turn"
	"github.com/stretchr/testify/require"
)

type channel struct {
	mu   sync.Mutex
	sent []*domain.Activity
}

func (c *channel) SendActivities(ctx context.Context, tc *turn.Context, acts []*domain.Activity) ([]domain.ResourceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, acts...)
	return make([]domain.ResourceResponse, len(acts)), nil
}

func (c *channel) UpdateActivity(ctx context.Context, tc *turn.Context, a *domain.Activity) (*domain.ResourceResponse, error) {
	return &domain.ResourceResponse{ID: a.ID}, nil
}

func (c *channel) DeleteActivity(ctx context.Context, tc *turn.Context, ref domain.ConversationReference) error {
	return nil
}

func (c *channel) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []string{}
	for _, a := range c.sent {
		if a.IsType(domain.ActivityMessage) {
			out = append(out, a.Text)
		}
	}
	return out
}

// harness persists the dialog stack in conversation state backed by memory,
// so every turn goes through a real storage round trip.
type harness struct {
	t        *testing.T
	conv     *state.BotState
	accessor *state.PropertyAccessor[*dialogs.DialogState]
	channel  *channel
}

func newHarness(t *testing.T) *harness {
	conv := state.NewConversationState(memory.NewStore())
	return &harness{
		t:        t,
		conv:     conv,
		accessor: state.NewPropertyAccessor[*dialogs.DialogState](conv, "DialogState"),
		channel:  &channel{},
	}
}

func (h *harness) activity(text string) *domain.Activity {
	return &domain.Activity{
		Type:         domain.ActivityMessage,
		ChannelID:    "test",
		From:         domain.ChannelAccount{ID: "user"},
		Recipient:    domain.ChannelAccount{ID: "bot"},
		Conversation: domain.ConversationAccount{ID: "conv"},
		Text:         text,
	}
}

func (h *harness) turn(text string, opts ...turn.Option) *turn.Context {
	return turn.New(h.channel, h.activity(text), opts...)
}

// context creates a DialogContext for a fresh turn.
func (h *harness) context(set *dialogs.DialogSet, text string) (*turn.Context, *dialogs.DialogContext) {
	tc := h.turn(text)
	dc, err := set.CreateContext(context.Background(), tc)
	require.NoError(h.t, err)
	return tc, dc
}

func (h *harness) save(tc *turn.Context) {
	require.NoError(h.t, h.conv.SaveChanges(context.Background(), tc, false))
}

func (h *harness) set(ds ...dialogs.Dialog) *dialogs.DialogSet {
	set := dialogs.NewDialogSet(h.accessor)
	require.NoError(h.t, set.Add(ds...))
	return set
}

// recorder is a dialog that records what happens to it.
type recorder struct {
	dialogs.Base
	trail   *[]string
	resumed []any
}

func newRecorder(id string, trail *[]string) *recorder {
	return &recorder{Base: dialogs.NewBase(id), trail: trail}
}

func (p *recorder) BeginDialog(ctx context.Context, dc *dialogs.DialogContext, options any) (dialogs.DialogTurnResult, error) {
	*p.trail = append(*p.trail, p.ID()+":begin")
	return dialogs.EndOfTurn, nil
}

func (p *recorder) ResumeDialog(ctx context.Context, dc *dialogs.DialogContext, reason dialogs.DialogReason, result any) (dialogs.DialogTurnResult, error) {
	*p.trail = append(*p.trail, p.ID()+":resume:"+reason.String())
	p.resumed = append(p.resumed, result)
	return dialogs.EndOfTurn, nil
}

func (p *recorder) RepromptDialog(ctx context.Context, tc *turn.Context, inst *dialogs.DialogInstance) error {
	*p.trail = append(*p.trail, p.ID()+":reprompt")
	return nil
}

func (p *recorder) EndDialog(ctx context.Context, tc *turn.Context, inst *dialogs.DialogInstance, reason dialogs.DialogReason) error {
	*p.trail = append(*p.trail, p.ID()+":end:"+reason.String())
	return nil
}
