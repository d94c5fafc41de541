package turn

import (
	"context"
	"fmt"

	"github.com/aretw0/palaver/pkg/domain"
)

type link[R any] func(ctx context.Context, next func(context.Context) (R, error)) (R, error)

// run walks links in order and finishes with terminal. Each next may be
// called at most once.
func run[R any](ctx context.Context, links []link[R], terminal func(context.Context) (R, error)) (R, error) {
	var step func(ctx context.Context, i int) (R, error)
	step = func(ctx context.Context, i int) (R, error) {
		if i == len(links) {
			return terminal(ctx)
		}
		called := false
		return links[i](ctx, func(ctx context.Context) (R, error) {
			if called {
				var zero R
				return zero, fmt.Errorf("turn: handler %d: %w", i, domain.ErrNextCalledTwice)
			}
			called = true
			return step(ctx, i+1)
		})
	}
	return step(ctx, 0)
}
