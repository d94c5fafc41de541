package state

import (
	"context"
	"fmt"

	"github.com/aretw0/palaver/internal/codec"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
)

// PropertyAccessor reads and writes one typed property of a BotState. It
// loads the scope on first use.
type PropertyAccessor[T any] struct {
	state *BotState
	name  string
}

// NewPropertyAccessor creates an accessor for the named property.
func NewPropertyAccessor[T any](s *BotState, name string) *PropertyAccessor[T] {
	return &PropertyAccessor[T]{state: s, name: name}
}

// Name returns the property name.
func (p *PropertyAccessor[T]) Name() string { return p.name }

// Get returns the property. A value that came back from storage in generic
// form is decoded into T and cached for the rest of the turn. When the
// property is absent, defaultFn seeds it; with a nil defaultFn Get returns
// domain.ErrNotFound.
func (p *PropertyAccessor[T]) Get(ctx context.Context, tc *turn.Context, defaultFn func() T) (T, error) {
	var zero T
	if err := p.state.Load(ctx, tc, false); err != nil {
		return zero, err
	}

	v, ok, err := p.state.GetProperty(tc, p.name)
	if err != nil {
		return zero, err
	}

	if ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		var out T
		if err := codec.Decode(v, &out); err != nil {
			return zero, fmt.Errorf("state: property %q: %w", p.name, err)
		}
		if err := p.state.SetProperty(tc, p.name, out); err != nil {
			return zero, err
		}
		return out, nil
	}

	if defaultFn == nil {
		return zero, fmt.Errorf("state: property %q: %w", p.name, domain.ErrNotFound)
	}
	out := defaultFn()
	if err := p.state.SetProperty(tc, p.name, out); err != nil {
		return zero, err
	}
	return out, nil
}

// Set replaces the property.
func (p *PropertyAccessor[T]) Set(ctx context.Context, tc *turn.Context, value T) error {
	if err := p.state.Load(ctx, tc, false); err != nil {
		return err
	}
	return p.state.SetProperty(tc, p.name, value)
}

// Delete removes the property.
func (p *PropertyAccessor[T]) Delete(ctx context.Context, tc *turn.Context) error {
	if err := p.state.Load(ctx, tc, false); err != nil {
		return err
	}
	return p.state.DeleteProperty(tc, p.name)
}
