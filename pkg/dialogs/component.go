package dialogs

import (
	"context"
	"fmt"

	"github.com/aretw0/palaver/internal/codec"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
)

const componentStack = "dialogs"

// ComponentDialog packages a DialogSet as a single dialog. Its inner stack is
// stored inside its own instance state, so the outer stack only ever sees
// the component.
type ComponentDialog struct {
	Base
	dialogs         *DialogSet
	initialDialogID string
}

var _ Container = (*ComponentDialog)(nil)

// NewComponentDialog creates an empty component.
func NewComponentDialog(id string, opts ...SetOption) *ComponentDialog {
	return &ComponentDialog{
		Base:    NewBase(id),
		dialogs: NewDialogSet(nil, opts...),
	}
}

// AddDialog registers an inner dialog. The first one added becomes the
// initial dialog unless SetInitialDialogID says otherwise.
func (c *ComponentDialog) AddDialog(d Dialog) error {
	if err := c.dialogs.Add(d); err != nil {
		return err
	}
	if c.initialDialogID == "" {
		c.initialDialogID = d.ID()
	}
	return nil
}

// SetInitialDialogID selects the dialog begun when the component begins.
func (c *ComponentDialog) SetInitialDialogID(id string) {
	c.initialDialogID = id
}

// InitialDialogID returns the dialog begun when the component begins.
func (c *ComponentDialog) InitialDialogID() string { return c.initialDialogID }

// Dialogs implements Container.
func (c *ComponentDialog) Dialogs() *DialogSet { return c.dialogs }

// Version includes the versions of every inner dialog.
func (c *ComponentDialog) Version() string {
	return c.ID() + ":" + c.dialogs.Version()
}

// BeginDialog starts the initial inner dialog.
func (c *ComponentDialog) BeginDialog(ctx context.Context, outer *DialogContext, options any) (DialogTurnResult, error) {
	if c.initialDialogID == "" {
		return DialogTurnResult{}, fmt.Errorf("dialogs: component %q has no initial dialog: %w", c.ID(), domain.ErrConfiguration)
	}

	inst := outer.ActiveDialog()
	st := NewDialogState()
	inst.State[componentStack] = st
	inner := outer.NewChild(c.dialogs, st)

	res, err := inner.BeginDialog(ctx, c.initialDialogID, options)
	if err != nil {
		return DialogTurnResult{}, err
	}
	return c.afterInner(ctx, outer, res)
}

// ContinueDialog forwards the turn to the inner stack.
func (c *ComponentDialog) ContinueDialog(ctx context.Context, outer *DialogContext) (DialogTurnResult, error) {
	inner, err := c.CreateChildContext(outer)
	if err != nil {
		return DialogTurnResult{}, err
	}
	if inner == nil {
		return outer.EndDialog(ctx, nil)
	}

	res, err := inner.ContinueDialog(ctx)
	if err != nil {
		return DialogTurnResult{}, err
	}
	return c.afterInner(ctx, outer, res)
}

// ResumeDialog runs when a dialog the component pushed on the outer stack
// ends. The inner stack is still waiting, so it is reprompted.
func (c *ComponentDialog) ResumeDialog(ctx context.Context, outer *DialogContext, reason DialogReason, result any) (DialogTurnResult, error) {
	if err := c.RepromptDialog(ctx, outer.TurnContext(), outer.ActiveDialog()); err != nil {
		return DialogTurnResult{}, err
	}
	return EndOfTurn, nil
}

// RepromptDialog reprompts the active inner dialog.
func (c *ComponentDialog) RepromptDialog(ctx context.Context, tc *turn.Context, instance *DialogInstance) error {
	st, err := c.innerState(instance)
	if err != nil || st == nil {
		return err
	}
	return NewDialogContext(c.dialogs, tc, st).RepromptDialog(ctx)
}

// EndDialog cancels the inner stack when the component is cancelled.
func (c *ComponentDialog) EndDialog(ctx context.Context, tc *turn.Context, instance *DialogInstance, reason DialogReason) error {
	if reason != ReasonCancelCalled {
		return nil
	}
	st, err := c.innerState(instance)
	if err != nil || st == nil {
		return err
	}
	_, err = NewDialogContext(c.dialogs, tc, st).CancelAllDialogs(ctx, false, "", nil)
	return err
}

// CreateChildContext implements Container.
func (c *ComponentDialog) CreateChildContext(outer *DialogContext) (*DialogContext, error) {
	st, err := c.innerState(outer.ActiveDialog())
	if err != nil || st == nil {
		return nil, err
	}
	return outer.NewChild(c.dialogs, st), nil
}

func (c *ComponentDialog) afterInner(ctx context.Context, outer *DialogContext, res DialogTurnResult) (DialogTurnResult, error) {
	if res.Status == StatusWaiting {
		return EndOfTurn, nil
	}
	return outer.EndDialog(ctx, res.Result)
}

// innerState returns the typed inner stack, decoding it if it came back from
// storage in generic form.
func (c *ComponentDialog) innerState(inst *DialogInstance) (*DialogState, error) {
	if inst == nil {
		return nil, nil
	}
	raw, ok := inst.State[componentStack]
	if !ok || raw == nil {
		return nil, nil
	}
	if st, ok := raw.(*DialogState); ok {
		return st, nil
	}

	var st *DialogState
	if err := codec.Decode(raw, &st); err != nil {
		return nil, fmt.Errorf("dialogs: component %q inner stack: %w", c.ID(), err)
	}
	if st == nil {
		st = NewDialogState()
	}
	if st.DialogStack == nil {
		st.DialogStack = []*DialogInstance{}
	}
	inst.State[componentStack] = st
	return st, nil
}
