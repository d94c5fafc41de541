package dialogs_test

import (
	"context"
	"testing"

	"github.com/aretw0/palaver/pkg/dialogs"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopStep(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
	return dialogs.EndOfTurn, nil
}

func TestWaterfall_NextThenEnd(t *testing.T) {
	h := newHarness(t)
	root := dialogs.NewWaterfallDialog("root",
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			return step.Next(ctx, "x")
		},
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			return step.EndDialog(ctx, step.Result())
		},
	)
	_, dc := h.context(h.set(root), "hi")

	res, err := dc.BeginDialog(context.Background(), "root", nil)
	require.NoError(t, err)
	assert.Equal(t, dialogs.StatusComplete, res.Status)
	assert.Equal(t, "x", res.Result)
	assert.Empty(t, dc.Stack())
}

type stepCall struct {
	index   int
	options any
	result  any
	reason  dialogs.DialogReason
}

func TestWaterfall_StepSequence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var calls []stepCall
	record := func(step *dialogs.WaterfallStepContext) {
		calls = append(calls, stepCall{step.Index(), step.Options(), step.Result(), step.Reason()})
	}

	var parentTrail []string
	parent := newRecorder("parent", &parentTrail)
	w := dialogs.NewWaterfallDialog("w",
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			record(step)
			return step.Next(ctx, "v")
		},
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			record(step)
			return step.Next(ctx, "v1")
		},
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			record(step)
			return step.Next(ctx, "r2")
		},
	)
	_, dc := h.context(h.set(parent, w), "hi")

	_, err := dc.BeginDialog(ctx, "parent", nil)
	require.NoError(t, err)
	_, err = dc.BeginDialog(ctx, "w", "O")
	require.NoError(t, err)

	require.Len(t, calls, 3)
	assert.Equal(t, stepCall{0, "O", nil, dialogs.ReasonBeginCalled}, calls[0])
	assert.Equal(t, stepCall{1, "O", "v", dialogs.ReasonNextCalled}, calls[1])
	assert.Equal(t, stepCall{2, "O", "v1", dialogs.ReasonNextCalled}, calls[2])

	assert.Equal(t, []any{"r2"}, parent.resumed, "the last step's value is forwarded to the parent")
	assert.Equal(t, []string{"parent"}, stackIDs(dc))
}

func TestWaterfall_NextCalledTwice(t *testing.T) {
	h := newHarness(t)
	w := dialogs.NewWaterfallDialog("w",
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			if _, err := step.Next(ctx, 1); err != nil {
				return dialogs.DialogTurnResult{}, err
			}
			return step.Next(ctx, 2)
		},
		noopStep,
	)
	_, dc := h.context(h.set(w), "hi")

	_, err := dc.BeginDialog(context.Background(), "w", nil)
	assert.ErrorIs(t, err, domain.ErrProtocolViolation)
}

func TestWaterfall_ChildResultReentersNextStep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var got []any

	child := dialogs.NewWaterfallDialog("child",
		noopStep,
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			return step.EndDialog(ctx, "from child: "+step.Result().(string))
		},
	)
	root := dialogs.NewWaterfallDialog("root",
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			step.Values()["greeting"] = "hello"
			return step.BeginDialog(ctx, "child", nil)
		},
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			got = append(got, step.Result(), step.Values()["greeting"], step.Index())
			return step.EndDialog(ctx, "done")
		},
	)
	set := h.set(root, child)

	tc, dc := h.context(set, "start")
	res, err := dc.BeginDialog(ctx, "root", nil)
	require.NoError(t, err)
	assert.Equal(t, dialogs.StatusWaiting, res.Status)
	assert.Equal(t, []string{"child", "root"}, stackIDs(dc))
	h.save(tc)

	// Next turn: the reply goes to the child, whose result resumes root at step 1.
	tc, dc = h.context(set, "answer")
	res, err = dc.ContinueDialog(ctx)
	require.NoError(t, err)
	assert.Equal(t, dialogs.StatusComplete, res.Status)
	assert.Equal(t, "done", res.Result)
	assert.Equal(t, []any{"from child: answer", "hello", 1}, got)
	h.save(tc)
}

func TestWaterfall_IgnoresNonMessageActivities(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	steps := 0
	w := dialogs.NewWaterfallDialog("w",
		noopStep,
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			steps++
			return dialogs.EndOfTurn, nil
		},
	)
	set := h.set(w)

	tc, dc := h.context(set, "hi")
	_, err := dc.BeginDialog(ctx, "w", nil)
	require.NoError(t, err)
	h.save(tc)

	tc = h.turn("")
	tc.Activity().Type = domain.ActivityTyping
	dc, err = set.CreateContext(ctx, tc)
	require.NoError(t, err)

	res, err := dc.ContinueDialog(ctx)
	require.NoError(t, err)
	assert.Equal(t, dialogs.StatusWaiting, res.Status)
	assert.Zero(t, steps)
}

func TestWaterfall_OutOfRangeEnds(t *testing.T) {
	h := newHarness(t)
	empty := dialogs.NewWaterfallDialog("empty")
	_, dc := h.context(h.set(empty), "hi")

	res, err := dc.BeginDialog(context.Background(), "empty", nil)
	require.NoError(t, err)
	assert.Equal(t, dialogs.StatusComplete, res.Status)
}

func TestWaterfall_NilStepIsConfigurationError(t *testing.T) {
	h := newHarness(t)
	_, dc := h.context(h.set(dialogs.NewWaterfallDialog("w", noopStep, nil)), "hi")

	_, err := dc.BeginDialog(context.Background(), "w", nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestWaterfall_Version(t *testing.T) {
	w := dialogs.NewWaterfallDialog("w", noopStep)
	assert.Equal(t, "w:1", w.Version())
	w.AddStep(noopStep)
	assert.Equal(t, "w:2", w.Version())
}

func TestWaterfall_InstanceState(t *testing.T) {
	h := newHarness(t)
	var id string
	w := dialogs.NewWaterfallDialog("w", func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
		id = step.InstanceID()
		return dialogs.EndOfTurn, nil
	})
	_, dc := h.context(h.set(w), "hi")

	_, err := dc.BeginDialog(context.Background(), "w", map[string]any{"k": "v"})
	require.NoError(t, err)

	st := dc.ActiveDialog().State
	assert.NotEmpty(t, id)
	assert.Equal(t, id, st["instanceId"])
	assert.Equal(t, 0, st["stepIndex"])
	assert.Equal(t, map[string]any{"k": "v"}, st["options"])
	assert.Equal(t, map[string]any{}, st["values"])
}
