package dialogs

import (
	"context"
	"fmt"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/state"
	"github.com/aretw0/palaver/pkg/turn"
)

// Run drives d as the root dialog of the conversation: it continues the
// active stack and begins d when the stack is empty. The stack is persisted
// through accessor; saving conversation state stays with the caller.
func Run(ctx context.Context, d Dialog, tc *turn.Context, accessor *state.PropertyAccessor[*DialogState]) (DialogTurnResult, error) {
	set := NewDialogSet(accessor)
	if err := set.Add(d); err != nil {
		return DialogTurnResult{}, err
	}
	return set.Run(ctx, tc, d.ID())
}

func runContext(ctx context.Context, dc *DialogContext, rootID string) (DialogTurnResult, error) {
	tc := dc.TurnContext()
	act := tc.Activity()
	caller := tc.Caller()

	switch caller.Kind {
	case domain.CallerSkill:
		// The parent bot ends or reprompts us explicitly.
		if act.IsType(domain.ActivityEndOfConversation) {
			return dc.CancelAllDialogs(ctx, true, "", nil)
		}
		if act.IsType(domain.ActivityEvent) && act.Name == EventRepromptDialog {
			if err := dc.RepromptDialog(ctx); err != nil {
				return DialogTurnResult{}, err
			}
			return EndOfTurn, nil
		}
	case domain.CallerUser, domain.CallerChannel:
	}

	res, err := dc.ContinueDialog(ctx)
	if err != nil {
		return DialogTurnResult{}, err
	}
	if res.Status == StatusEmpty {
		if res, err = dc.BeginDialog(ctx, rootID, nil); err != nil {
			return DialogTurnResult{}, err
		}
	}

	if caller.IsSkill() {
		if err := sendEndOfConversation(ctx, tc, res); err != nil {
			return DialogTurnResult{}, err
		}
	}
	return res, nil
}

// sendEndOfConversation tells a parent bot that the skill's root dialog is done.
func sendEndOfConversation(ctx context.Context, tc *turn.Context, res DialogTurnResult) error {
	var code string
	switch res.Status {
	case StatusComplete:
		code = domain.EndOfConversationCompleted
	case StatusCancelled:
		code = domain.EndOfConversationUserCancelled
	default:
		return nil
	}
	eoc := domain.NewEndOfConversation(code, res.Result)
	if act := tc.Activity(); act != nil {
		eoc.Locale = act.Locale
	}
	if _, err := tc.SendActivity(ctx, eoc); err != nil {
		return fmt.Errorf("dialogs: notify parent bot: %w", err)
	}
	return nil
}
