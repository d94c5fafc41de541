// Package demo contains the sample bot served by the palaver CLI.
package demo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/palaver"
	"github.com/aretw0/palaver/internal/codec"
	"github.com/aretw0/palaver/pkg/dialogs"
	"github.com/aretw0/palaver/pkg/dialogs/prompts"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/state"
)

// Dialog and prompt ids.
const (
	ProfileDialogID = "profile"
	flowID          = "profile.flow"
	namePromptID    = "profile.name"
	agePromptID     = "profile.age"
	confirmPromptID = "profile.confirm"
)

// Messages sent by the demo bot.
const (
	Welcome     = "Hi! I keep a small profile about you. Type **help** at any time."
	HelpText    = "I am collecting your profile. Answer the question, or type **cancel** to stop."
	CancelText  = "Okay, I stopped. Say anything to start over."
	AskName     = "What is your name?"
	AskAge      = "How old are you?"
	RetryAge    = "Please enter your age as a number between 1 and 129."
	DiscardText = "No problem, I did not save anything."
)

// Profile is stored in user state.
type Profile struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// ProfileDialog asks for a name and an age, confirms them and saves the
// profile. It handles "help" and "cancel" before its inner dialogs see the
// message.
type ProfileDialog struct {
	*dialogs.ComponentDialog
	profile *state.PropertyAccessor[*Profile]
}

// NewProfileDialog builds the demo dialog. Profiles are stored through
// profile, which should live in user state.
func NewProfileDialog(profile *state.PropertyAccessor[*Profile], opts ...dialogs.SetOption) (*ProfileDialog, error) {
	p := &ProfileDialog{
		ComponentDialog: dialogs.NewComponentDialog(ProfileDialogID, opts...),
		profile:         profile,
	}

	flow := dialogs.NewWaterfallDialog(flowID,
		p.greetStep,
		p.nameStep,
		p.ageStep,
		p.confirmStep,
		p.saveStep,
	)
	age := prompts.NewNumber(agePromptID, prompts.WithValidator(validateAge))

	for _, d := range []dialogs.Dialog{flow, prompts.NewText(namePromptID), age, prompts.NewConfirm(confirmPromptID)} {
		if err := p.AddDialog(d); err != nil {
			return nil, err
		}
	}
	p.SetInitialDialogID(flowID)
	return p, nil
}

// ContinueDialog intercepts the interruption commands.
func (p *ProfileDialog) ContinueDialog(ctx context.Context, outer *dialogs.DialogContext) (dialogs.DialogTurnResult, error) {
	tc := outer.TurnContext()
	switch strings.ToLower(strings.TrimSpace(tc.Activity().Text)) {
	case "help":
		if _, err := tc.SendText(ctx, HelpText); err != nil {
			return dialogs.DialogTurnResult{}, err
		}
		if err := outer.RepromptDialog(ctx); err != nil {
			return dialogs.DialogTurnResult{}, err
		}
		return dialogs.EndOfTurn, nil
	case "cancel":
		if _, err := tc.SendText(ctx, CancelText); err != nil {
			return dialogs.DialogTurnResult{}, err
		}
		return outer.CancelAllDialogs(ctx, false, "", nil)
	}
	return p.ComponentDialog.ContinueDialog(ctx, outer)
}

func (p *ProfileDialog) greetStep(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
	saved, err := p.profile.Get(ctx, step.TurnContext(), nil)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return dialogs.DialogTurnResult{}, err
	}
	if saved != nil && saved.Name != "" {
		msg := fmt.Sprintf("Welcome back, %s! Let's update your profile.", saved.Name)
		if _, err := step.TurnContext().SendText(ctx, msg); err != nil {
			return dialogs.DialogTurnResult{}, err
		}
	}
	return step.Next(ctx, nil)
}

func (p *ProfileDialog) nameStep(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
	return step.BeginDialog(ctx, namePromptID, prompts.Options{Prompt: AskName})
}

func (p *ProfileDialog) ageStep(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
	step.Values()["name"] = step.Result()
	return step.BeginDialog(ctx, agePromptID, prompts.Options{
		Prompt:      AskAge,
		RetryPrompt: RetryAge,
		MaxAttempts: 3,
	})
}

func (p *ProfileDialog) confirmStep(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
	age, ok := step.Result().(float64)
	if !ok {
		if _, err := step.TurnContext().SendText(ctx, "Let's try again later."); err != nil {
			return dialogs.DialogTurnResult{}, err
		}
		return step.EndDialog(ctx, nil)
	}
	step.Values()["age"] = int(age)
	return step.BeginDialog(ctx, confirmPromptID, prompts.Options{
		Prompt: fmt.Sprintf("Save %v, %d years old?", step.Values()["name"], int(age)),
	})
}

func (p *ProfileDialog) saveStep(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
	tc := step.TurnContext()
	if confirmed, _ := step.Result().(bool); !confirmed {
		if _, err := tc.SendText(ctx, DiscardText); err != nil {
			return dialogs.DialogTurnResult{}, err
		}
		return step.EndDialog(ctx, nil)
	}

	profile := &Profile{}
	profile.Name, _ = step.Values()["name"].(string)
	profile.Age, _ = codec.Int(step.Values()["age"])
	if err := p.profile.Set(ctx, tc, profile); err != nil {
		return dialogs.DialogTurnResult{}, err
	}
	if _, err := tc.SendText(ctx, fmt.Sprintf("Saved. Nice to meet you, %s!", profile.Name)); err != nil {
		return dialogs.DialogTurnResult{}, err
	}
	return step.EndDialog(ctx, profile)
}

func validateAge(ctx context.Context, vc *prompts.ValidatorContext[float64]) (bool, error) {
	v := vc.Recognized.Value
	return vc.Recognized.Succeeded && v >= 1 && v < 130 && v == float64(int(v)), nil
}

// NewBot creates the demo bot. The profile is kept in user state.
func NewBot(opts ...palaver.Option) (*palaver.Bot, error) {
	opts = append([]palaver.Option{palaver.WithWelcome(Welcome)}, opts...)
	return palaver.NewFunc(func(b *palaver.Bot) (dialogs.Dialog, error) {
		profile := state.NewPropertyAccessor[*Profile](b.UserState(), "profile")
		return NewProfileDialog(profile, dialogs.WithHooks(b.Hooks()))
	}, opts...)
}
