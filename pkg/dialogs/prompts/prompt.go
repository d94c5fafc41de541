// Package prompts provides dialogs that ask the user for a single typed value
// and re-ask until a valid answer arrives.
package prompts

import (
	"context"
	"fmt"

	"github.com/aretw0/palaver/internal/codec"
	"github.com/aretw0/palaver/pkg/dialogs"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
)

// Keys of a prompt's instance state.
const (
	stateOptions = "options"
	stateAttempt = "attempt"
)

// Options are passed to BeginDialog. A plain string is accepted as Prompt.
type Options struct {
	Prompt      string `json:"prompt"`
	RetryPrompt string `json:"retryPrompt,omitempty"`
	// MaxAttempts ends the prompt with a nil result after that many invalid
	// answers. Zero retries forever.
	MaxAttempts int `json:"maxAttempts,omitempty"`
}

// Recognized is the outcome of parsing the user's reply.
type Recognized[T any] struct {
	Succeeded bool
	Value     T
}

// Recognizer parses the turn's activity.
type Recognizer[T any] func(ctx context.Context, tc *turn.Context) (Recognized[T], error)

// ValidatorContext is handed to a Validator.
type ValidatorContext[T any] struct {
	TurnContext *turn.Context
	Recognized  Recognized[T]
	Options     Options
	// Attempt counts the answers received so far, starting at 1.
	Attempt int
}

// Validator accepts or rejects a recognized value. A validator may send its
// own retry message; the prompt then skips its RetryPrompt.
type Validator[T any] func(ctx context.Context, vc *ValidatorContext[T]) (bool, error)

// Prompt is a dialog that ends with a value of type T.
type Prompt[T any] struct {
	dialogs.Base
	recognize Recognizer[T]
	validator Validator[T]
}

var _ dialogs.Dialog = (*Prompt[string])(nil)

// Option configures a Prompt.
type Option[T any] func(*Prompt[T])

// WithValidator installs a validator run after successful recognition.
func WithValidator[T any](v Validator[T]) Option[T] {
	return func(p *Prompt[T]) {
		p.validator = v
	}
}

// New creates a prompt around a recognizer.
func New[T any](id string, recognize Recognizer[T], opts ...Option[T]) *Prompt[T] {
	p := &Prompt[T]{Base: dialogs.NewBase(id), recognize: recognize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BeginDialog sends the prompt and waits for the answer.
func (p *Prompt[T]) BeginDialog(ctx context.Context, dc *dialogs.DialogContext, options any) (dialogs.DialogTurnResult, error) {
	if p.recognize == nil {
		return dialogs.DialogTurnResult{}, fmt.Errorf("prompts: %q has no recognizer: %w", p.ID(), domain.ErrConfiguration)
	}
	opts, err := decodeOptions(options)
	if err != nil {
		return dialogs.DialogTurnResult{}, fmt.Errorf("prompts: %q options: %w", p.ID(), err)
	}

	inst := dc.ActiveDialog()
	inst.State[stateOptions] = opts
	inst.State[stateAttempt] = 0

	if err := send(ctx, dc.TurnContext(), opts.Prompt); err != nil {
		return dialogs.DialogTurnResult{}, err
	}
	return dialogs.EndOfTurn, nil
}

// ContinueDialog recognizes and validates the reply. Invalid answers are
// re-asked unless the turn already responded.
func (p *Prompt[T]) ContinueDialog(ctx context.Context, dc *dialogs.DialogContext) (dialogs.DialogTurnResult, error) {
	tc := dc.TurnContext()
	if !tc.Activity().IsType(domain.ActivityMessage) {
		return dialogs.EndOfTurn, nil
	}

	inst := dc.ActiveDialog()
	opts, err := decodeOptions(inst.State[stateOptions])
	if err != nil {
		return dialogs.DialogTurnResult{}, fmt.Errorf("prompts: %q options: %w", p.ID(), err)
	}
	attempt, _ := codec.Int(inst.State[stateAttempt])
	attempt++
	inst.State[stateAttempt] = attempt

	rec, err := p.recognize(ctx, tc)
	if err != nil {
		return dialogs.DialogTurnResult{}, fmt.Errorf("prompts: %q recognize: %w", p.ID(), err)
	}

	valid := rec.Succeeded
	if valid && p.validator != nil {
		valid, err = p.validator(ctx, &ValidatorContext[T]{
			TurnContext: tc,
			Recognized:  rec,
			Options:     opts,
			Attempt:     attempt,
		})
		if err != nil {
			return dialogs.DialogTurnResult{}, fmt.Errorf("prompts: %q validate: %w", p.ID(), err)
		}
	}

	if valid {
		return dc.EndDialog(ctx, rec.Value)
	}
	if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
		return dc.EndDialog(ctx, nil)
	}
	if !tc.Responded() {
		retry := opts.RetryPrompt
		if retry == "" {
			retry = opts.Prompt
		}
		if err := send(ctx, tc, retry); err != nil {
			return dialogs.DialogTurnResult{}, err
		}
	}
	return dialogs.EndOfTurn, nil
}

// ResumeDialog re-asks after an interruption by another dialog.
func (p *Prompt[T]) ResumeDialog(ctx context.Context, dc *dialogs.DialogContext, reason dialogs.DialogReason, result any) (dialogs.DialogTurnResult, error) {
	if err := p.RepromptDialog(ctx, dc.TurnContext(), dc.ActiveDialog()); err != nil {
		return dialogs.DialogTurnResult{}, err
	}
	return dialogs.EndOfTurn, nil
}

// RepromptDialog sends the prompt again.
func (p *Prompt[T]) RepromptDialog(ctx context.Context, tc *turn.Context, inst *dialogs.DialogInstance) error {
	opts, err := decodeOptions(inst.State[stateOptions])
	if err != nil {
		return fmt.Errorf("prompts: %q options: %w", p.ID(), err)
	}
	return send(ctx, tc, opts.Prompt)
}

func decodeOptions(raw any) (Options, error) {
	switch v := raw.(type) {
	case nil:
		return Options{}, nil
	case string:
		return Options{Prompt: v}, nil
	case Options:
		return v, nil
	case *Options:
		return *v, nil
	}
	var opts Options
	if err := codec.Decode(raw, &opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func send(ctx context.Context, tc *turn.Context, text string) error {
	if text == "" {
		return nil
	}
	_, err := tc.SendText(ctx, text)
	return err
}
