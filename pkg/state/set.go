package state

import (
	"context"

	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/turn"
	"golang.org/x/sync/errgroup"
)

// BotStateSet loads and saves several scopes together.
type BotStateSet struct {
	states []*BotState
}

// NewBotStateSet groups the given scopes.
func NewBotStateSet(states ...*BotState) *BotStateSet {
	s := &BotStateSet{}
	s.Add(states...)
	return s
}

// Add appends scopes. Nil entries are ignored.
func (s *BotStateSet) Add(states ...*BotState) *BotStateSet {
	for _, st := range states {
		if st != nil {
			s.states = append(s.states, st)
		}
	}
	return s
}

// States returns the grouped scopes.
func (s *BotStateSet) States() []*BotState { return s.states }

// LoadAll loads every scope concurrently.
func (s *BotStateSet) LoadAll(ctx context.Context, tc *turn.Context, force bool) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range s.states {
		g.Go(func() error {
			return st.Load(gctx, tc, force)
		})
	}
	return g.Wait()
}

// SaveAll saves every scope concurrently.
func (s *BotStateSet) SaveAll(ctx context.Context, tc *turn.Context, force bool) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range s.states {
		g.Go(func() error {
			return st.SaveChanges(gctx, tc, force)
		})
	}
	return g.Wait()
}

// AutoSaveStateMiddleware loads the scopes when a turn starts and saves the
// ones that changed once the rest of the pipeline returns successfully.
type AutoSaveStateMiddleware struct {
	set *BotStateSet
}

var _ bot.Middleware = (*AutoSaveStateMiddleware)(nil)

// NewAutoSaveStateMiddleware creates the middleware for the given scopes.
func NewAutoSaveStateMiddleware(states ...*BotState) *AutoSaveStateMiddleware {
	return &AutoSaveStateMiddleware{set: NewBotStateSet(states...)}
}

// Set returns the managed scopes.
func (m *AutoSaveStateMiddleware) Set() *BotStateSet { return m.set }

// OnTurn implements bot.Middleware.
func (m *AutoSaveStateMiddleware) OnTurn(ctx context.Context, tc *turn.Context, next bot.NextDelegate) error {
	if err := m.set.LoadAll(ctx, tc, false); err != nil {
		return err
	}
	if err := next(ctx); err != nil {
		return err
	}
	return m.set.SaveAll(ctx, tc, false)
}
