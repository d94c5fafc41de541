package turn

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/aretw0/palaver/pkg/domain"
)

// Adapter delivers outbound operations to a channel.
type Adapter interface {
	SendActivities(ctx context.Context, tc *Context, activities []*domain.Activity) ([]domain.ResourceResponse, error)
	UpdateActivity(ctx context.Context, tc *Context, activity *domain.Activity) (*domain.ResourceResponse, error)
	DeleteActivity(ctx context.Context, tc *Context, ref domain.ConversationReference) error
}

// SendNext continues a send chain.
type SendNext func(ctx context.Context) ([]domain.ResourceResponse, error)

// SendActivitiesHandler intercepts outbound activities. Handlers may edit the
// activities in place before calling next.
type SendActivitiesHandler func(ctx context.Context, tc *Context, activities []*domain.Activity, next SendNext) ([]domain.ResourceResponse, error)

// UpdateNext continues an update chain.
type UpdateNext func(ctx context.Context) (*domain.ResourceResponse, error)

// UpdateActivityHandler intercepts activity updates.
type UpdateActivityHandler func(ctx context.Context, tc *Context, activity *domain.Activity, next UpdateNext) (*domain.ResourceResponse, error)

// DeleteNext continues a delete chain.
type DeleteNext func(ctx context.Context) error

// DeleteActivityHandler intercepts activity deletions.
type DeleteActivityHandler func(ctx context.Context, tc *Context, ref domain.ConversationReference, next DeleteNext) error

// Context is the state of a single turn.
type Context struct {
	adapter   Adapter
	activity  *domain.Activity
	caller    domain.Caller
	responded atomic.Bool

	mu       sync.Mutex
	services map[any]any
	onSend   []SendActivitiesHandler
	onUpdate []UpdateActivityHandler
	onDelete []DeleteActivityHandler
}

// Option configures a Context.
type Option func(*Context)

// WithCaller sets who initiated the turn. Defaults to domain.UserCaller().
func WithCaller(c domain.Caller) Option {
	return func(tc *Context) {
		tc.caller = c
	}
}

// New creates the context for one turn. activity may be nil for proactive
// turns that have not synthesized an activity yet.
func New(adapter Adapter, activity *domain.Activity, opts ...Option) *Context {
	tc := &Context{
		adapter:  adapter,
		activity: activity,
		caller:   domain.UserCaller(),
		services: make(map[any]any),
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// Activity returns the inbound activity.
func (c *Context) Activity() *domain.Activity { return c.activity }

// Adapter returns the adapter that owns the turn.
func (c *Context) Adapter() Adapter { return c.adapter }

// Caller returns the turn's caller identity.
func (c *Context) Caller() domain.Caller { return c.caller }

// Responded reports whether a non-trace activity has been sent this turn.
func (c *Context) Responded() bool { return c.responded.Load() }

// MarkResponded sets the responded flag. It can never be cleared.
func (c *Context) MarkResponded() { c.responded.Store(true) }

// OnSendActivities appends send handlers and returns c for chaining.
func (c *Context) OnSendActivities(h ...SendActivitiesHandler) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSend = append(c.onSend, h...)
	return c
}

// OnUpdateActivity appends update handlers and returns c for chaining.
func (c *Context) OnUpdateActivity(h ...UpdateActivityHandler) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = append(c.onUpdate, h...)
	return c
}

// OnDeleteActivity appends delete handlers and returns c for chaining.
func (c *Context) OnDeleteActivity(h ...DeleteActivityHandler) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDelete = append(c.onDelete, h...)
	return c
}

func (c *Context) reference() domain.ConversationReference {
	if c.activity == nil {
		return domain.ConversationReference{}
	}
	return c.activity.ConversationReference()
}

// SendActivity sends a single activity.
func (c *Context) SendActivity(ctx context.Context, activity *domain.Activity) (*domain.ResourceResponse, error) {
	responses, err := c.SendActivities(ctx, []*domain.Activity{activity})
	if err != nil || len(responses) == 0 {
		return nil, err
	}
	return &responses[0], nil
}

// SendText sends a message activity with the given text.
func (c *Context) SendText(ctx context.Context, text string) (*domain.ResourceResponse, error) {
	return c.SendActivity(ctx, domain.NewMessage(text))
}

// SendActivities addresses copies of the activities to the inbound
// conversation, runs the send chain and delivers them through the adapter.
func (c *Context) SendActivities(ctx context.Context, activities []*domain.Activity) ([]domain.ResourceResponse, error) {
	if len(activities) == 0 {
		return []domain.ResourceResponse{}, nil
	}

	ref := c.reference()
	outgoing := make([]*domain.Activity, 0, len(activities))
	for _, a := range activities {
		if a == nil {
			return nil, fmt.Errorf("turn: nil activity: %w", domain.ErrMissingArgument)
		}
		cp := a.Clone()
		cp.ApplyConversationReference(ref, false)
		if cp.Type == "" {
			cp.Type = domain.ActivityMessage
		}
		outgoing = append(outgoing, cp)
	}

	c.mu.Lock()
	handlers := slices.Clone(c.onSend)
	c.mu.Unlock()

	links := make([]link[[]domain.ResourceResponse], len(handlers))
	for i, h := range handlers {
		links[i] = func(ctx context.Context, next func(context.Context) ([]domain.ResourceResponse, error)) ([]domain.ResourceResponse, error) {
			return h(ctx, c, outgoing, next)
		}
	}

	return run(ctx, links, func(ctx context.Context) ([]domain.ResourceResponse, error) {
		responses, err := c.adapter.SendActivities(ctx, c, outgoing)
		if err != nil {
			return nil, &domain.DeliveryError{Op: "send activities", Err: err}
		}
		for i := range responses {
			if i < len(outgoing) && responses[i].ID != "" {
				outgoing[i].ID = responses[i].ID
			}
		}
		for _, a := range outgoing {
			if !a.IsType(domain.ActivityTrace) {
				c.MarkResponded()
				break
			}
		}
		return responses, nil
	})
}

// UpdateActivity replaces a previously sent activity.
func (c *Context) UpdateActivity(ctx context.Context, activity *domain.Activity) (*domain.ResourceResponse, error) {
	if activity == nil {
		return nil, fmt.Errorf("turn: nil activity: %w", domain.ErrMissingArgument)
	}
	cp := activity.Clone()
	cp.ApplyConversationReference(c.reference(), false)

	c.mu.Lock()
	handlers := slices.Clone(c.onUpdate)
	c.mu.Unlock()

	links := make([]link[*domain.ResourceResponse], len(handlers))
	for i, h := range handlers {
		links[i] = func(ctx context.Context, next func(context.Context) (*domain.ResourceResponse, error)) (*domain.ResourceResponse, error) {
			return h(ctx, c, cp, next)
		}
	}

	return run(ctx, links, func(ctx context.Context) (*domain.ResourceResponse, error) {
		res, err := c.adapter.UpdateActivity(ctx, c, cp)
		if err != nil {
			return nil, &domain.DeliveryError{Op: "update activity", Err: err}
		}
		return res, nil
	})
}

// DeleteActivity deletes a previously sent activity of this conversation.
func (c *Context) DeleteActivity(ctx context.Context, activityID string) error {
	ref := c.reference()
	ref.ActivityID = activityID
	return c.DeleteActivityByReference(ctx, ref)
}

// DeleteActivityByReference deletes the activity the reference points to.
func (c *Context) DeleteActivityByReference(ctx context.Context, ref domain.ConversationReference) error {
	c.mu.Lock()
	handlers := slices.Clone(c.onDelete)
	c.mu.Unlock()

	links := make([]link[struct{}], len(handlers))
	for i, h := range handlers {
		links[i] = func(ctx context.Context, next func(context.Context) (struct{}, error)) (struct{}, error) {
			return struct{}{}, h(ctx, c, ref, func(ctx context.Context) error {
				_, err := next(ctx)
				return err
			})
		}
	}

	_, err := run(ctx, links, func(ctx context.Context) (struct{}, error) {
		if err := c.adapter.DeleteActivity(ctx, c, ref); err != nil {
			return struct{}{}, &domain.DeliveryError{Op: "delete activity", Err: err}
		}
		return struct{}{}, nil
	})
	return err
}
