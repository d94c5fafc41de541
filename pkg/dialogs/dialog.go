package dialogs

import (
	"context"

	"github.com/aretw0/palaver/pkg/turn"
)

// Dialog is a unit of conversational logic that lives on the dialog stack.
type Dialog interface {
	// ID is the key the dialog is registered under.
	ID() string
	// Version changes whenever the dialog's persisted shape changes.
	Version() string

	BeginDialog(ctx context.Context, dc *DialogContext, options any) (DialogTurnResult, error)
	ContinueDialog(ctx context.Context, dc *DialogContext) (DialogTurnResult, error)
	ResumeDialog(ctx context.Context, dc *DialogContext, reason DialogReason, result any) (DialogTurnResult, error)
	RepromptDialog(ctx context.Context, tc *turn.Context, instance *DialogInstance) error
	EndDialog(ctx context.Context, tc *turn.Context, instance *DialogInstance, reason DialogReason) error
}

// EventHandler replaces the default event protocol for a dialog. Most dialogs
// implement PreBubbler or PostBubbler instead.
type EventHandler interface {
	OnDialogEvent(ctx context.Context, dc *DialogContext, e DialogEvent) (bool, error)
}

// PreBubbler sees an event before it is sent to the parent context.
type PreBubbler interface {
	OnPreBubbleEvent(ctx context.Context, dc *DialogContext, e DialogEvent) (bool, error)
}

// PostBubbler sees an event nobody above it claimed.
type PostBubbler interface {
	OnPostBubbleEvent(ctx context.Context, dc *DialogContext, e DialogEvent) (bool, error)
}

// Container is a dialog that runs its own nested stack.
type Container interface {
	Dialog
	Dialogs() *DialogSet
	// CreateChildContext returns the context of the nested stack, or nil if
	// the instance has none.
	CreateChildContext(dc *DialogContext) (*DialogContext, error)
}

// Base provides the common parts of a dialog. Embedders must implement
// BeginDialog.
type Base struct {
	id string
}

// NewBase returns a Base for id.
func NewBase(id string) Base {
	return Base{id: id}
}

// ID implements Dialog.
func (b Base) ID() string { return b.id }

// Version defaults to the id.
func (b Base) Version() string { return b.id }

// ContinueDialog ends the dialog by default.
func (b Base) ContinueDialog(ctx context.Context, dc *DialogContext) (DialogTurnResult, error) {
	return dc.EndDialog(ctx, nil)
}

// ResumeDialog ends the dialog with the child's result by default.
func (b Base) ResumeDialog(ctx context.Context, dc *DialogContext, reason DialogReason, result any) (DialogTurnResult, error) {
	return dc.EndDialog(ctx, result)
}

// RepromptDialog does nothing by default.
func (b Base) RepromptDialog(ctx context.Context, tc *turn.Context, instance *DialogInstance) error {
	return nil
}

// EndDialog does nothing by default.
func (b Base) EndDialog(ctx context.Context, tc *turn.Context, instance *DialogInstance, reason DialogReason) error {
	return nil
}
