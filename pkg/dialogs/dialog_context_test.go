package dialogs_test

import (
	"context"
	"testing"

	"github.com/aretw0/palaver/pkg/dialogs"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stackIDs(dc *dialogs.DialogContext) []string {
	ids := []string{}
	for _, inst := range dc.Stack() {
		ids = append(ids, inst.ID)
	}
	return ids
}

func TestDialogSet_Add(t *testing.T) {
	set := dialogs.NewDialogSet(nil)
	a := dialogs.NewWaterfallDialog("a")

	require.NoError(t, set.Add(a))
	require.NoError(t, set.Add(a), "re-adding the same dialog is harmless")
	assert.ErrorIs(t, set.Add(dialogs.NewWaterfallDialog("a")), domain.ErrConfiguration)
	assert.ErrorIs(t, set.Add(nil), domain.ErrConfiguration)
	assert.Same(t, a, set.Find("a"))
	assert.Nil(t, set.Find("missing"))
}

func TestDialogSet_Version(t *testing.T) {
	set := dialogs.NewDialogSet(nil)
	w := dialogs.NewWaterfallDialog("w", noopStep)
	require.NoError(t, set.Add(w, dialogs.NewWaterfallDialog("v")))

	before := set.Version()
	assert.Equal(t, before, set.Version(), "stable while nothing changes")

	w.AddStep(noopStep)
	assert.NotEqual(t, before, set.Version())
}

func TestDialogSet_CreateContextRequiresAccessor(t *testing.T) {
	h := newHarness(t)
	_, err := dialogs.NewDialogSet(nil).CreateContext(context.Background(), h.turn("hi"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBeginDialog_UnknownID(t *testing.T) {
	h := newHarness(t)
	_, dc := h.context(h.set(), "hi")

	_, err := dc.BeginDialog(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, domain.ErrDialogNotFound)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Empty(t, dc.Stack())
}

func TestStack_PushEndResume(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var trail []string
	a, b := newRecorder("A", &trail), newRecorder("B", &trail)
	_, dc := h.context(h.set(a, b), "hi")

	res, err := dc.BeginDialog(ctx, "A", nil)
	require.NoError(t, err)
	assert.Equal(t, dialogs.StatusWaiting, res.Status)

	_, err = dc.BeginDialog(ctx, "B", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, stackIDs(dc))
	assert.Equal(t, 1, dc.ActiveDialog().StackIndex)
	assert.Equal(t, "B", dc.ActiveDialog().Version)

	_, err = dc.EndDialog(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, stackIDs(dc))
	assert.Equal(t, []any{"R"}, a.resumed)

	res, err = dc.EndDialog(ctx, "R2")
	require.NoError(t, err)
	assert.Equal(t, dialogs.StatusComplete, res.Status)
	assert.Equal(t, "R2", res.Result)
	assert.Empty(t, dc.Stack())

	assert.Equal(t, []string{
		"A:begin", "B:begin",
		"B:end:endCalled", "A:resume:endCalled",
		"A:end:endCalled",
	}, trail)
}

func TestContinueDialog_Empty(t *testing.T) {
	h := newHarness(t)
	_, dc := h.context(h.set(), "hi")

	res, err := dc.ContinueDialog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dialogs.StatusEmpty, res.Status)
}

func TestStack_SurvivesTurns(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var trail []string
	set := h.set(newRecorder("A", &trail), newRecorder("B", &trail))

	tc, dc := h.context(set, "one")
	_, err := dc.BeginDialog(ctx, "A", nil)
	require.NoError(t, err)
	_, err = dc.BeginDialog(ctx, "B", nil)
	require.NoError(t, err)
	h.save(tc)

	_, dc = h.context(set, "two")
	assert.Equal(t, []string{"B", "A"}, stackIDs(dc))

	// Base.ContinueDialog ends B, which resumes A.
	_, err = dc.ContinueDialog(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, stackIDs(dc))
}

func TestReplaceDialog(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var trail []string
	_, dc := h.context(h.set(newRecorder("A", &trail), newRecorder("B", &trail), newRecorder("C", &trail)), "hi")

	_, err := dc.BeginDialog(ctx, "A", nil)
	require.NoError(t, err)
	_, err = dc.BeginDialog(ctx, "B", nil)
	require.NoError(t, err)

	_, err = dc.ReplaceDialog(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrDialogNotFound)
	assert.Equal(t, []string{"B", "A"}, stackIDs(dc), "a bad replace leaves the stack alone")

	_, err = dc.ReplaceDialog(ctx, "C", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, stackIDs(dc))
	assert.Contains(t, trail, "B:end:replaceCalled")
	assert.NotContains(t, trail, "A:resume:endCalled", "replace does not resume the parent")
}

func TestCancelAllDialogs(t *testing.T) {
	ctx := context.Background()

	t.Run("Unwinds top down", func(t *testing.T) {
		h := newHarness(t)
		var trail []string
		_, dc := h.context(h.set(newRecorder("A", &trail), newRecorder("B", &trail)), "hi")
		_, _ = dc.BeginDialog(ctx, "A", nil)
		_, _ = dc.BeginDialog(ctx, "B", nil)

		res, err := dc.CancelAllDialogs(ctx, false, "", nil)
		require.NoError(t, err)
		assert.Equal(t, dialogs.StatusCancelled, res.Status)
		assert.Empty(t, dc.Stack())
		assert.Equal(t, []string{"A:begin", "B:begin", "B:end:cancelCalled", "A:end:cancelCalled"}, trail)
	})

	t.Run("Empty stack", func(t *testing.T) {
		h := newHarness(t)
		_, dc := h.context(h.set(), "hi")
		res, err := dc.CancelAllDialogs(ctx, true, "", nil)
		require.NoError(t, err)
		assert.Equal(t, dialogs.StatusEmpty, res.Status)
	})

	t.Run("Claimed cancel stops unwinding", func(t *testing.T) {
		h := newHarness(t)
		var trail []string
		guard := &guardDialog{recorder: newRecorder("guard", &trail)}
		_, dc := h.context(h.set(newRecorder("A", &trail), guard), "hi")
		_, _ = dc.BeginDialog(ctx, "A", nil)
		_, _ = dc.BeginDialog(ctx, "guard", nil)

		res, err := dc.CancelAllDialogs(ctx, false, "", nil)
		require.NoError(t, err)
		assert.Equal(t, dialogs.StatusWaiting, res.Status)
		assert.Equal(t, []string{"guard", "A"}, stackIDs(dc))
		assert.Equal(t, []string{dialogs.EventCancelDialog}, guard.seen)
	})
}

// guardDialog refuses to be cancelled.
type guardDialog struct {
	*recorder
	seen []string
}

func (g *guardDialog) OnPreBubbleEvent(ctx context.Context, dc *dialogs.DialogContext, e dialogs.DialogEvent) (bool, error) {
	g.seen = append(g.seen, e.Name)
	return e.Name == dialogs.EventCancelDialog, nil
}

func TestRepromptDialog(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var trail []string
	_, dc := h.context(h.set(newRecorder("A", &trail)), "hi")

	require.NoError(t, dc.RepromptDialog(ctx), "reprompt on an empty stack is a no-op")

	_, _ = dc.BeginDialog(ctx, "A", nil)
	require.NoError(t, dc.RepromptDialog(ctx))
	assert.Equal(t, []string{"A:begin", "A:reprompt"}, trail)
}

func TestLifecycleHooks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var trail []string
	var events []string

	hooks := domain.LifecycleHooks{
		OnDialogBegin: func(_ context.Context, e *domain.DialogLifecycleEvent) {
			events = append(events, "begin:"+e.DialogID)
		},
		OnDialogEnd: func(_ context.Context, e *domain.DialogLifecycleEvent) {
			events = append(events, "end:"+e.DialogID+":"+e.Reason)
		},
	}
	set := dialogs.NewDialogSet(h.accessor, dialogs.WithHooks(hooks))
	require.NoError(t, set.Add(newRecorder("A", &trail)))
	_, dc := h.context(set, "hi")

	_, _ = dc.BeginDialog(ctx, "A", nil)
	_, _ = dc.EndDialog(ctx, nil)
	assert.Equal(t, []string{"begin:A", "end:A:endCalled"}, events)
}
