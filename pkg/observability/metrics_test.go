package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aretw0/palaver/internal/logging"
	"github.com/aretw0/palaver/pkg/adapters/memory"
	"github.com/aretw0/palaver/pkg/adapters/testadapter"
	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/dialogs"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/observability"
	"github.com/aretw0/palaver/pkg/state"
	"github.com/aretw0/palaver/pkg/turn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetrics(t *testing.T) (*observability.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return observability.NewMetrics(observability.WithNamespace("test"), observability.WithRegisterer(reg)), reg
}

func TestMetrics_Middleware(t *testing.T) {
	m, reg := newMetrics(t)
	adapter := testadapter.New(testadapter.WithBotOptions(bot.WithMiddleware(m.Middleware())))
	ctx := context.Background()

	reply := func(ctx context.Context, tc *turn.Context) error {
		_, err := tc.SendActivities(ctx, []*domain.Activity{domain.NewMessage("a"), domain.NewMessage("b")})
		return err
	}
	require.NoError(t, adapter.SendText(ctx, "hi", reply))
	require.NoError(t, adapter.SendText(ctx, "quiet", func(context.Context, *turn.Context) error { return nil }))
	require.Error(t, adapter.SendText(ctx, "fail", func(context.Context, *turn.Context) error { return errors.New("boom") }))

	expected := `
# HELP test_turns_total Total number of turns processed
# TYPE test_turns_total counter
test_turns_total{activity_type="message",channel="test",outcome="error"} 1
test_turns_total{activity_type="message",channel="test",outcome="responded"} 1
test_turns_total{activity_type="message",channel="test",outcome="silent"} 1
# HELP test_activities_sent_total Total number of outbound activities handed to the channel
# TYPE test_activities_sent_total counter
test_activities_sent_total{activity_type="message",channel="test"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"test_turns_total", "test_activities_sent_total"))

	n, err := testutil.GatherAndCount(reg, "test_turn_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "one duration series per channel")
}

func TestMetrics_Hooks(t *testing.T) {
	m, reg := newMetrics(t)
	ctx := context.Background()

	conv := state.NewConversationState(memory.NewStore())
	set := dialogs.NewDialogSet(
		state.NewPropertyAccessor[*dialogs.DialogState](conv, "DialogState"),
		dialogs.WithHooks(m.Hooks()),
	)
	require.NoError(t, set.Add(dialogs.NewWaterfallDialog("greet",
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			return step.EndDialog(ctx, nil)
		},
	)))

	adapter := testadapter.New()
	require.NoError(t, adapter.SendText(ctx, "hi", func(ctx context.Context, tc *turn.Context) error {
		_, err := set.Run(ctx, tc, "greet")
		return err
	}))

	expected := `
# HELP test_dialog_events_total Dialog lifecycle events by kind and dialog id
# TYPE test_dialog_events_total counter
test_dialog_events_total{detail="beginCalled",dialog_id="greet",kind="dialog_begin"} 1
test_dialog_events_total{detail="endCalled",dialog_id="greet",kind="dialog_end"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_dialog_events_total"))
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithFormat(&buf, slog.LevelDebug, logging.FormatJSON)
	hooks := observability.LogHooks(logger)

	hooks.OnDialogBegin(context.Background(), &domain.DialogLifecycleEvent{DialogID: "greet", Reason: "beginCalled", StackDepth: 1})
	assert.Contains(t, buf.String(), `"msg":"dialog_begin"`)
	assert.Contains(t, buf.String(), `"dialog_id":"greet"`)
}
