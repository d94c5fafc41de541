package dialogs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aretw0/palaver/internal/codec"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/google/uuid"
)

// Keys of a waterfall's instance state.
const (
	waterfallOptions    = "options"
	waterfallValues     = "values"
	waterfallStepIndex  = "stepIndex"
	waterfallInstanceID = "instanceId"
)

// WaterfallStep is one step of a WaterfallDialog. A step either calls
// step.Next, begins a child dialog (returning EndOfTurn), or ends the dialog.
type WaterfallStep func(ctx context.Context, step *WaterfallStepContext) (DialogTurnResult, error)

// WaterfallDialog runs its steps in order, threading a values map through
// them. A child dialog's result re-enters at the following step.
type WaterfallDialog struct {
	Base
	steps []WaterfallStep
}

// NewWaterfallDialog creates a waterfall with the given steps.
func NewWaterfallDialog(id string, steps ...WaterfallStep) *WaterfallDialog {
	return &WaterfallDialog{Base: NewBase(id), steps: steps}
}

// AddStep appends a step.
func (w *WaterfallDialog) AddStep(step WaterfallStep) *WaterfallDialog {
	w.steps = append(w.steps, step)
	return w
}

// Version changes when steps are added or removed, which invalidates stored
// step indices.
func (w *WaterfallDialog) Version() string {
	return w.ID() + ":" + strconv.Itoa(len(w.steps))
}

// BeginDialog implements Dialog.
func (w *WaterfallDialog) BeginDialog(ctx context.Context, dc *DialogContext, options any) (DialogTurnResult, error) {
	for i, step := range w.steps {
		if step == nil {
			return DialogTurnResult{}, fmt.Errorf("dialogs: waterfall %q step %d is nil: %w", w.ID(), i, domain.ErrMissingArgument)
		}
	}

	inst := dc.ActiveDialog()
	inst.State[waterfallOptions] = options
	inst.State[waterfallValues] = map[string]any{}
	inst.State[waterfallInstanceID] = uuid.NewString()

	return w.runStep(ctx, dc, 0, ReasonBeginCalled, nil)
}

// ContinueDialog feeds a message's text to the current step. Other activity
// types are ignored.
func (w *WaterfallDialog) ContinueDialog(ctx context.Context, dc *DialogContext) (DialogTurnResult, error) {
	act := dc.TurnContext().Activity()
	if !act.IsType(domain.ActivityMessage) {
		return EndOfTurn, nil
	}
	return w.ResumeDialog(ctx, dc, ReasonContinueCalled, act.Text)
}

// ResumeDialog advances to the step after the stored index.
func (w *WaterfallDialog) ResumeDialog(ctx context.Context, dc *DialogContext, reason DialogReason, result any) (DialogTurnResult, error) {
	idx, _ := codec.Int(dc.ActiveDialog().State[waterfallStepIndex])
	return w.runStep(ctx, dc, idx+1, reason, result)
}

func (w *WaterfallDialog) runStep(ctx context.Context, dc *DialogContext, index int, reason DialogReason, result any) (DialogTurnResult, error) {
	if index < 0 || index >= len(w.steps) {
		return dc.EndDialog(ctx, result)
	}

	inst := dc.ActiveDialog()
	inst.State[waterfallStepIndex] = index

	values, ok := inst.State[waterfallValues].(map[string]any)
	if !ok {
		values = map[string]any{}
		inst.State[waterfallValues] = values
	}
	instanceID, _ := inst.State[waterfallInstanceID].(string)

	step := &WaterfallStepContext{
		DialogContext: dc,
		dialog:        w,
		index:         index,
		options:       inst.State[waterfallOptions],
		values:        values,
		instanceID:    instanceID,
		reason:        reason,
		result:        result,
	}
	return w.steps[index](ctx, step)
}

// WaterfallStepContext is handed to each step. It embeds the DialogContext so
// steps can begin children or end the dialog directly.
type WaterfallStepContext struct {
	*DialogContext
	dialog     *WaterfallDialog
	index      int
	options    any
	values     map[string]any
	instanceID string
	reason     DialogReason
	result     any
	nextCalled bool
}

// Index is the zero based step index.
func (s *WaterfallStepContext) Index() int { return s.index }

// Options are the options the waterfall was begun with.
func (s *WaterfallStepContext) Options() any { return s.options }

// Values is shared by every step of this waterfall instance and persisted
// with it. It is not visible to other dialogs.
func (s *WaterfallStepContext) Values() map[string]any { return s.values }

// InstanceID identifies this run of the waterfall.
func (s *WaterfallStepContext) InstanceID() string { return s.instanceID }

// Reason tells why the step runs.
func (s *WaterfallStepContext) Reason() DialogReason { return s.reason }

// Result is the previous step's Next value, a child's result or the user's
// reply text.
func (s *WaterfallStepContext) Result() any { return s.result }

// Next skips to the following step with result. It may be called once.
func (s *WaterfallStepContext) Next(ctx context.Context, result any) (DialogTurnResult, error) {
	if s.nextCalled {
		return DialogTurnResult{}, fmt.Errorf("dialogs: waterfall %q step %d: %w", s.dialog.ID(), s.index, domain.ErrNextCalledTwice)
	}
	s.nextCalled = true
	return s.dialog.ResumeDialog(ctx, s.DialogContext, ReasonNextCalled, result)
}
