// Package console runs a bot over line oriented text streams, typically a
// terminal's stdin and stdout.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
	"github.com/google/uuid"
)

// ChannelID identifies activities that arrive through the console.
const ChannelID = "console"

// RenderFunc formats reply text for display, e.g. markdown to ANSI.
type RenderFunc func(text string) (string, error)

// Adapter reads one user message per line and writes the bot's replies.
type Adapter struct {
	*bot.Adapter

	in     io.Reader
	mu     sync.Mutex
	out    io.Writer
	render RenderFunc
	prompt string
	ref    domain.ConversationReference
}

var _ turn.Adapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithRenderer formats message text before it is written.
func WithRenderer(r RenderFunc) Option {
	return func(a *Adapter) {
		a.render = r
	}
}

// WithPrompt sets the input prompt printed before each read.
func WithPrompt(p string) Option {
	return func(a *Adapter) {
		a.prompt = p
	}
}

// WithConversation sets the user and conversation ids of the session.
// Reusing a conversation id resumes its persisted dialogs.
func WithConversation(userID, conversationID string) Option {
	return func(a *Adapter) {
		a.ref.User.ID = userID
		a.ref.Conversation.ID = conversationID
	}
}

// WithBotOptions configures the embedded bot adapter.
func WithBotOptions(opts ...bot.Option) Option {
	return func(a *Adapter) {
		a.Adapter = bot.NewAdapter(opts...)
	}
}

// New creates a console adapter reading from in and writing to out.
func New(in io.Reader, out io.Writer, opts ...Option) *Adapter {
	a := &Adapter{
		Adapter: bot.NewAdapter(),
		in:      in,
		out:     out,
		prompt:  "> ",
		ref: domain.ConversationReference{
			ChannelID:    ChannelID,
			User:         domain.ChannelAccount{ID: "user", Role: "user"},
			Bot:          domain.ChannelAccount{ID: "palaver", Role: "bot"},
			Conversation: domain.ConversationAccount{ID: uuid.NewString()},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reference returns the conversation the console talks in.
func (a *Adapter) Reference() domain.ConversationReference { return a.ref }

// Listen processes input until EOF, an error or ctx is done. A
// conversationUpdate turn runs first so the bot can greet the user.
func (a *Adapter) Listen(ctx context.Context, handler bot.Handler) error {
	greet := a.activity(domain.ActivityConversationUpdate, "")
	tc := turn.New(a, greet, turn.WithCaller(domain.Caller{Kind: domain.CallerChannel, AppID: ChannelID}))
	if err := a.RunPipeline(ctx, tc, handler); err != nil {
		return err
	}

	scanner := bufio.NewScanner(a.in)
	for {
		a.write(a.prompt)
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := a.ProcessActivity(ctx, a, a.activity(domain.ActivityMessage, text), handler); err != nil {
			return err
		}
	}
	a.write("\n")
	return scanner.Err()
}

func (a *Adapter) activity(t domain.ActivityType, text string) *domain.Activity {
	act := &domain.Activity{Type: t, Text: text}
	act.ApplyConversationReference(a.ref, true)
	act.ID = uuid.NewString()
	return act
}

// SendActivities implements turn.Adapter.
func (a *Adapter) SendActivities(ctx context.Context, tc *turn.Context, acts []*domain.Activity) ([]domain.ResourceResponse, error) {
	responses := make([]domain.ResourceResponse, len(acts))
	for i, act := range acts {
		if act.ID == "" {
			act.ID = uuid.NewString()
		}
		responses[i] = domain.ResourceResponse{ID: act.ID}

		switch act.Type {
		case domain.ActivityMessage:
			text := act.Text
			if a.render != nil {
				rendered, err := a.render(text)
				if err != nil {
					return nil, fmt.Errorf("console: render: %w", err)
				}
				text = strings.TrimRight(rendered, "\n")
			}
			a.write(text + "\n")
		case domain.ActivityEndOfConversation:
			a.write("[conversation ended]\n")
		}
	}
	return responses, nil
}

// UpdateActivity prints the new text, since a terminal cannot edit history.
func (a *Adapter) UpdateActivity(ctx context.Context, tc *turn.Context, act *domain.Activity) (*domain.ResourceResponse, error) {
	a.write("(edited) " + act.Text + "\n")
	return &domain.ResourceResponse{ID: act.ID}, nil
}

// DeleteActivity is not supported.
func (a *Adapter) DeleteActivity(ctx context.Context, tc *turn.Context, ref domain.ConversationReference) error {
	return domain.ErrNotSupported
}

func (a *Adapter) write(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	io.WriteString(a.out, s)
}
