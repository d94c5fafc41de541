package dialogs_test

import (
	"context"
	"testing"

	"github.com/aretw0/palaver/pkg/dialogs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventRecorder notes each bubbling phase and claims the ones listed.
type eventRecorder struct {
	trail  []string
	claims map[string]bool
}

func (r *eventRecorder) note(phase string) bool {
	r.trail = append(r.trail, phase)
	return r.claims[phase]
}

type listeningComponent struct {
	*dialogs.ComponentDialog
	rec *eventRecorder
}

func (l *listeningComponent) OnPreBubbleEvent(ctx context.Context, dc *dialogs.DialogContext, e dialogs.DialogEvent) (bool, error) {
	return l.rec.note(l.ID() + ":pre"), nil
}

func (l *listeningComponent) OnPostBubbleEvent(ctx context.Context, dc *dialogs.DialogContext, e dialogs.DialogEvent) (bool, error) {
	return l.rec.note(l.ID() + ":post"), nil
}

type listeningWaterfall struct {
	*dialogs.WaterfallDialog
	rec *eventRecorder
}

func (l *listeningWaterfall) OnPreBubbleEvent(ctx context.Context, dc *dialogs.DialogContext, e dialogs.DialogEvent) (bool, error) {
	return l.rec.note(l.ID() + ":pre"), nil
}

func (l *listeningWaterfall) OnPostBubbleEvent(ctx context.Context, dc *dialogs.DialogContext, e dialogs.DialogEvent) (bool, error) {
	return l.rec.note(l.ID() + ":post"), nil
}

// nested builds outer -> inner -> leaf and begins it.
func nested(t *testing.T, rec *eventRecorder) *dialogs.DialogContext {
	t.Helper()
	leaf := &listeningWaterfall{WaterfallDialog: dialogs.NewWaterfallDialog("leaf", noopStep), rec: rec}
	inner := &listeningComponent{ComponentDialog: dialogs.NewComponentDialog("inner"), rec: rec}
	require.NoError(t, inner.AddDialog(leaf))
	outer := &listeningComponent{ComponentDialog: dialogs.NewComponentDialog("outer"), rec: rec}
	require.NoError(t, outer.AddDialog(inner))

	h := newHarness(t)
	_, dc := h.context(h.set(outer), "hi")
	res, err := dc.BeginDialog(context.Background(), "outer", nil)
	require.NoError(t, err)
	require.Equal(t, dialogs.StatusWaiting, res.Status)
	return dc
}

func TestEmitEvent_Bubbling(t *testing.T) {
	full := []string{"leaf:pre", "inner:pre", "outer:pre", "outer:post", "inner:post", "leaf:post"}

	tests := []struct {
		name      string
		claim     string
		bubble    bool
		fromLeaf  bool
		want      []string
		wantClaim bool
	}{
		{name: "Unclaimed", bubble: true, fromLeaf: true, want: full},
		{name: "Leaf pre claims", claim: "leaf:pre", bubble: true, fromLeaf: true, want: full[:1], wantClaim: true},
		{name: "Outer pre claims", claim: "outer:pre", bubble: true, fromLeaf: true, want: full[:3], wantClaim: true},
		{name: "Outer post claims", claim: "outer:post", bubble: true, fromLeaf: true, want: full[:4], wantClaim: true},
		{name: "Leaf post claims last", claim: "leaf:post", bubble: true, fromLeaf: true, want: full, wantClaim: true},
		{name: "No bubbling", bubble: false, fromLeaf: true, want: []string{"leaf:pre", "leaf:post"}},
		{name: "From root", bubble: true, fromLeaf: false, want: []string{"outer:pre", "outer:post"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &eventRecorder{claims: map[string]bool{}}
			if tt.claim != "" {
				rec.claims[tt.claim] = true
			}
			dc := nested(t, rec)

			handled, err := dc.EmitEvent(context.Background(), "custom", "payload", tt.bubble, tt.fromLeaf)
			require.NoError(t, err)
			assert.Equal(t, tt.wantClaim, handled)
			assert.Equal(t, tt.want, rec.trail)
		})
	}
}

func TestEmitEvent_EmptyStack(t *testing.T) {
	h := newHarness(t)
	_, dc := h.context(h.set(), "hi")

	handled, err := dc.EmitEvent(context.Background(), "custom", nil, true, true)
	require.NoError(t, err)
	assert.False(t, handled)
}
