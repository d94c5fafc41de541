package dialogs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/state"
	"github.com/aretw0/palaver/pkg/turn"
)

// DialogSet is a registry of dialogs addressed by id.
type DialogSet struct {
	mu       sync.RWMutex
	dialogs  map[string]Dialog
	accessor *state.PropertyAccessor[*DialogState]
	hooks    domain.LifecycleHooks
}

// SetOption configures a DialogSet.
type SetOption func(*DialogSet)

// WithHooks installs lifecycle hooks fired by every context of the set.
func WithHooks(h domain.LifecycleHooks) SetOption {
	return func(s *DialogSet) {
		s.hooks = s.hooks.Merge(h)
	}
}

// NewDialogSet creates a set that persists its stack through accessor.
// Sets nested in a container pass a nil accessor.
func NewDialogSet(accessor *state.PropertyAccessor[*DialogState], opts ...SetOption) *DialogSet {
	s := &DialogSet{
		dialogs:  make(map[string]Dialog),
		accessor: accessor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers dialogs. Adding the same instance twice is a no-op; two
// different dialogs with one id is a configuration error.
func (s *DialogSet) Add(dialogs ...Dialog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range dialogs {
		if d == nil {
			return fmt.Errorf("dialogs: add nil dialog: %w", domain.ErrMissingArgument)
		}
		id := d.ID()
		if id == "" {
			return fmt.Errorf("dialogs: add dialog without id: %w", domain.ErrMissingArgument)
		}
		if existing, ok := s.dialogs[id]; ok {
			if existing == d {
				continue
			}
			return fmt.Errorf("dialogs: duplicate dialog id %q: %w", id, domain.ErrConfiguration)
		}
		s.dialogs[id] = d
	}
	return nil
}

// Find returns the dialog registered under id, or nil.
func (s *DialogSet) Find(id string) Dialog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dialogs[id]
}

// Dialogs returns the registered dialogs ordered by id.
func (s *DialogSet) Dialogs() []Dialog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.dialogs))
	for id := range s.dialogs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Dialog, len(ids))
	for i, id := range ids {
		out[i] = s.dialogs[id]
	}
	return out
}

// Version hashes the versions of every registered dialog in id order.
func (s *DialogSet) Version() string {
	h := sha256.New()
	for _, d := range s.Dialogs() {
		h.Write([]byte(d.Version()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Hooks returns the set's lifecycle hooks.
func (s *DialogSet) Hooks() domain.LifecycleHooks {
	return s.hooks
}

// CreateContext loads the persisted stack for the turn.
func (s *DialogSet) CreateContext(ctx context.Context, tc *turn.Context) (*DialogContext, error) {
	if s.accessor == nil {
		return nil, fmt.Errorf("dialogs: set has no state accessor: %w", domain.ErrConfiguration)
	}
	st, err := s.accessor.Get(ctx, tc, NewDialogState)
	if err != nil {
		return nil, fmt.Errorf("dialogs: load dialog state: %w", err)
	}
	if st == nil {
		st = NewDialogState()
		if err := s.accessor.Set(ctx, tc, st); err != nil {
			return nil, err
		}
	}
	return NewDialogContext(s, tc, st), nil
}

// Run continues the active dialog or, with an empty stack, begins rootID.
func (s *DialogSet) Run(ctx context.Context, tc *turn.Context, rootID string) (DialogTurnResult, error) {
	dc, err := s.CreateContext(ctx, tc)
	if err != nil {
		return DialogTurnResult{}, err
	}
	return runContext(ctx, dc, rootID)
}
