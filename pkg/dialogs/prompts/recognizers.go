package prompts

import (
	"context"
	"strconv"
	"strings"

	"github.com/aretw0/palaver/pkg/turn"
)

// NewText creates a prompt that accepts any non blank message.
func NewText(id string, opts ...Option[string]) *Prompt[string] {
	return New(id, RecognizeText, opts...)
}

// NewNumber creates a prompt that accepts a decimal number.
func NewNumber(id string, opts ...Option[float64]) *Prompt[float64] {
	return New(id, RecognizeNumber, opts...)
}

// NewConfirm creates a yes/no prompt.
func NewConfirm(id string, opts ...Option[bool]) *Prompt[bool] {
	return New(id, RecognizeConfirm, opts...)
}

// RecognizeText succeeds for any message with non blank text.
func RecognizeText(ctx context.Context, tc *turn.Context) (Recognized[string], error) {
	text := strings.TrimSpace(tc.Activity().Text)
	return Recognized[string]{Succeeded: text != "", Value: text}, nil
}

// RecognizeNumber parses the message text as a float. A comma is accepted as
// the decimal separator.
func RecognizeNumber(ctx context.Context, tc *turn.Context) (Recognized[float64], error) {
	text := strings.TrimSpace(tc.Activity().Text)
	if strings.Count(text, ",") == 1 && !strings.Contains(text, ".") {
		text = strings.Replace(text, ",", ".", 1)
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Recognized[float64]{}, nil
	}
	return Recognized[float64]{Succeeded: true, Value: n}, nil
}

// RecognizeConfirm maps y/yes/true/1 and n/no/false/0 to a boolean.
func RecognizeConfirm(ctx context.Context, tc *turn.Context) (Recognized[bool], error) {
	switch strings.ToLower(strings.TrimSpace(tc.Activity().Text)) {
	case "y", "yes", "true", "1":
		return Recognized[bool]{Succeeded: true, Value: true}, nil
	case "n", "no", "false", "0":
		return Recognized[bool]{Succeeded: true, Value: false}, nil
	}
	return Recognized[bool]{}, nil
}
