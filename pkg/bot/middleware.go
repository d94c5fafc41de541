package bot

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
)

// Handler is the bot logic invoked once the middleware chain is exhausted.
type Handler func(ctx context.Context, tc *turn.Context) error

// NextDelegate hands control to the next middleware. Code before the call runs
// on the inbound edge of the turn and code after it on the outbound edge.
type NextDelegate func(ctx context.Context) error

// Middleware intercepts every turn. Not calling next short-circuits the rest of
// the chain and the bot handler without error.
type Middleware interface {
	OnTurn(ctx context.Context, tc *turn.Context, next NextDelegate) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, tc *turn.Context, next NextDelegate) error

// OnTurn implements Middleware.
func (f MiddlewareFunc) OnTurn(ctx context.Context, tc *turn.Context, next NextDelegate) error {
	return f(ctx, tc, next)
}

// MiddlewareSet is an ordered list of middleware. It is itself a Middleware,
// so sets can be nested.
type MiddlewareSet struct {
	mu         sync.Mutex
	middleware []Middleware
}

// NewMiddlewareSet returns a set with the given middleware registered.
func NewMiddlewareSet(mw ...Middleware) *MiddlewareSet {
	s := &MiddlewareSet{}
	return s.Use(mw...)
}

// Use appends middleware. Registration order is execution order; entries are
// never removed. Nil entries are ignored.
func (s *MiddlewareSet) Use(mw ...Middleware) *MiddlewareSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mw {
		if m != nil {
			s.middleware = append(s.middleware, m)
		}
	}
	return s
}

// Len reports how many middleware are registered.
func (s *MiddlewareSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.middleware)
}

// OnTurn implements Middleware by running the set and then next.
func (s *MiddlewareSet) OnTurn(ctx context.Context, tc *turn.Context, next NextDelegate) error {
	return s.ReceiveActivity(ctx, tc, func(ctx context.Context, _ *turn.Context) error {
		return next(ctx)
	})
}

// ReceiveActivity runs the middleware in order and, if every one of them
// called next, runs callback exactly once. A nil callback is allowed.
func (s *MiddlewareSet) ReceiveActivity(ctx context.Context, tc *turn.Context, callback Handler) error {
	s.mu.Lock()
	snapshot := slices.Clone(s.middleware)
	s.mu.Unlock()

	return receive(ctx, tc, snapshot, 0, callback)
}

func receive(ctx context.Context, tc *turn.Context, mw []Middleware, i int, callback Handler) error {
	if i == len(mw) {
		if callback == nil {
			return nil
		}
		return callback(ctx, tc)
	}

	called := false
	return mw[i].OnTurn(ctx, tc, func(ctx context.Context) error {
		if called {
			return fmt.Errorf("bot: middleware %d: %w", i, domain.ErrNextCalledTwice)
		}
		called = true
		return receive(ctx, tc, mw, i+1, callback)
	})
}
