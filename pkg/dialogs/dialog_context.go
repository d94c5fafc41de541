package dialogs

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
)

// DialogContext runs the stack machine of one DialogSet for one turn.
type DialogContext struct {
	dialogs *DialogSet
	tc      *turn.Context
	state   *DialogState
	parent  *DialogContext
	hooks   domain.LifecycleHooks
}

// NewDialogContext binds a set to a stack for the turn.
func NewDialogContext(dialogs *DialogSet, tc *turn.Context, st *DialogState) *DialogContext {
	if st == nil {
		st = NewDialogState()
	}
	return &DialogContext{
		dialogs: dialogs,
		tc:      tc,
		state:   st,
		hooks:   dialogs.Hooks(),
	}
}

// NewChild creates the context of a nested stack owned by the active dialog.
// It bubbles events to dc. Lifecycle hooks come from the nested set only, so a
// container that wants its inner dialogs observed passes hooks to that set.
func (dc *DialogContext) NewChild(dialogs *DialogSet, st *DialogState) *DialogContext {
	child := NewDialogContext(dialogs, dc.tc, st)
	child.parent = dc
	return child
}

// TurnContext returns the turn the context runs in.
func (dc *DialogContext) TurnContext() *turn.Context { return dc.tc }

// Dialogs returns the set the context resolves ids against first.
func (dc *DialogContext) Dialogs() *DialogSet { return dc.dialogs }

// Parent returns the enclosing context, or nil at the root.
func (dc *DialogContext) Parent() *DialogContext { return dc.parent }

// Stack returns the live stack, active dialog first.
func (dc *DialogContext) Stack() []*DialogInstance { return dc.state.DialogStack }

// State returns the persisted stack record.
func (dc *DialogContext) State() *DialogState { return dc.state }

// ActiveDialog returns the top of the stack, or nil.
func (dc *DialogContext) ActiveDialog() *DialogInstance {
	if len(dc.state.DialogStack) == 0 {
		return nil
	}
	return dc.state.DialogStack[0]
}

// Child returns the context of the active dialog's nested stack, or nil if
// the active dialog is not a container.
func (dc *DialogContext) Child() (*DialogContext, error) {
	inst := dc.ActiveDialog()
	if inst == nil {
		return nil, nil
	}
	c, ok := dc.FindDialog(inst.ID).(Container)
	if !ok {
		return nil, nil
	}
	return c.CreateChildContext(dc)
}

// FindDialog resolves id in this context's set, then in the parents' sets.
func (dc *DialogContext) FindDialog(id string) Dialog {
	for cur := dc; cur != nil; cur = cur.parent {
		if d := cur.dialogs.Find(id); d != nil {
			return d
		}
	}
	return nil
}

// BeginDialog pushes a new instance of dialog id and starts it.
func (dc *DialogContext) BeginDialog(ctx context.Context, id string, options any) (DialogTurnResult, error) {
	if id == "" {
		return DialogTurnResult{}, fmt.Errorf("dialogs: begin: dialog id: %w", domain.ErrMissingArgument)
	}
	d := dc.FindDialog(id)
	if d == nil {
		return DialogTurnResult{}, fmt.Errorf("dialogs: begin %q: %w", id, domain.ErrDialogNotFound)
	}

	inst := &DialogInstance{
		ID:         id,
		State:      map[string]any{},
		StackIndex: len(dc.state.DialogStack),
		Version:    d.Version(),
	}
	dc.state.DialogStack = append([]*DialogInstance{inst}, dc.state.DialogStack...)
	dc.fire(ctx, dc.hooks.OnDialogBegin, domain.EventDialogBegin, id, ReasonBeginCalled.String(), "")

	return d.BeginDialog(ctx, dc, options)
}

// ContinueDialog delivers the turn to the active dialog. An empty stack
// yields StatusEmpty.
func (dc *DialogContext) ContinueDialog(ctx context.Context) (DialogTurnResult, error) {
	if dc.ActiveDialog() == nil {
		return DialogTurnResult{Status: StatusEmpty}, nil
	}

	if err := dc.checkVersion(ctx); err != nil {
		return DialogTurnResult{}, err
	}

	// A versionChanged handler may have rewritten the stack.
	inst := dc.ActiveDialog()
	if inst == nil {
		return DialogTurnResult{Status: StatusEmpty}, nil
	}
	d := dc.FindDialog(inst.ID)
	if d == nil {
		return DialogTurnResult{}, fmt.Errorf("dialogs: continue %q: %w", inst.ID, domain.ErrDialogNotFound)
	}
	return d.ContinueDialog(ctx, dc)
}

// EndDialog pops the active dialog and resumes the new top with result. When
// the stack empties the result surfaces as StatusComplete.
func (dc *DialogContext) EndDialog(ctx context.Context, result any) (DialogTurnResult, error) {
	if dc.ActiveDialog() != nil {
		if err := dc.endActive(ctx, ReasonEndCalled); err != nil {
			return DialogTurnResult{}, err
		}
	}

	inst := dc.ActiveDialog()
	if inst == nil {
		return DialogTurnResult{Status: StatusComplete, Result: result}, nil
	}
	d := dc.FindDialog(inst.ID)
	if d == nil {
		return DialogTurnResult{}, fmt.Errorf("dialogs: resume %q: %w", inst.ID, domain.ErrDialogNotFound)
	}
	return d.ResumeDialog(ctx, dc, ReasonEndCalled, result)
}

// ReplaceDialog ends the active dialog and begins id in its place.
func (dc *DialogContext) ReplaceDialog(ctx context.Context, id string, options any) (DialogTurnResult, error) {
	if dc.FindDialog(id) == nil {
		return DialogTurnResult{}, fmt.Errorf("dialogs: replace with %q: %w", id, domain.ErrDialogNotFound)
	}
	if dc.ActiveDialog() != nil {
		if err := dc.endActive(ctx, ReasonReplaceCalled); err != nil {
			return DialogTurnResult{}, err
		}
	}
	return dc.BeginDialog(ctx, id, options)
}

// CancelAllDialogs unwinds the stack top-down. Before each pop the active
// dialog receives eventName (cancelDialog when empty) without bubbling; if
// it claims the event, unwinding stops there and the result is
// StatusWaiting. With cancelParents the parent stacks are unwound as well.
func (dc *DialogContext) CancelAllDialogs(ctx context.Context, cancelParents bool, eventName string, eventValue any) (DialogTurnResult, error) {
	if eventName == "" {
		eventName = EventCancelDialog
	}

	cancelled := false
	for cur := dc; cur != nil; {
		for cur.ActiveDialog() != nil {
			handled, err := cur.EmitEvent(ctx, eventName, eventValue, false, false)
			if err != nil {
				return DialogTurnResult{}, err
			}
			if handled {
				return EndOfTurn, nil
			}
			if err := cur.endActive(ctx, ReasonCancelCalled); err != nil {
				return DialogTurnResult{}, err
			}
			cancelled = true
		}
		if !cancelParents {
			break
		}
		cur = cur.parent
	}

	if !cancelled {
		return DialogTurnResult{Status: StatusEmpty}, nil
	}
	return DialogTurnResult{Status: StatusCancelled}, nil
}

// RepromptDialog asks the active dialog to repeat its last prompt, unless a
// repromptDialog event handler claims it first.
func (dc *DialogContext) RepromptDialog(ctx context.Context) error {
	inst := dc.ActiveDialog()
	if inst == nil {
		return nil
	}
	handled, err := dc.EmitEvent(ctx, EventRepromptDialog, nil, false, false)
	if err != nil || handled {
		return err
	}
	d := dc.FindDialog(inst.ID)
	if d == nil {
		return fmt.Errorf("dialogs: reprompt %q: %w", inst.ID, domain.ErrDialogNotFound)
	}
	return d.RepromptDialog(ctx, dc.tc, inst)
}

func (dc *DialogContext) endActive(ctx context.Context, reason DialogReason) error {
	inst := dc.ActiveDialog()
	if d := dc.FindDialog(inst.ID); d != nil {
		if err := d.EndDialog(ctx, dc.tc, inst, reason); err != nil {
			return err
		}
	}
	dc.state.DialogStack = dc.state.DialogStack[1:]
	dc.fire(ctx, dc.hooks.OnDialogEnd, domain.EventDialogEnd, inst.ID, reason.String(), "")
	return nil
}

func (dc *DialogContext) checkVersion(ctx context.Context) error {
	inst := dc.ActiveDialog()
	d := dc.FindDialog(inst.ID)
	if d == nil {
		return nil
	}
	live := d.Version()
	if inst.Version == live {
		return nil
	}
	inst.Version = live
	_, err := dc.EmitEvent(ctx, EventVersionChanged, inst.ID, true, false)
	return err
}

func (dc *DialogContext) depth() int {
	n := 0
	for cur := dc; cur != nil; cur = cur.parent {
		n += len(cur.state.DialogStack)
	}
	return n
}

func (dc *DialogContext) fire(ctx context.Context, hook func(context.Context, *domain.DialogLifecycleEvent), typ domain.EventType, id, reason, eventName string) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.DialogLifecycleEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now().UTC(), Type: typ},
		DialogID:   id,
		Reason:     reason,
		EventName:  eventName,
		StackDepth: dc.depth(),
	})
}
