package observability

import (
	"context"
	"time"

	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes used as the "outcome" label.
const (
	OutcomeResponded = "responded"
	OutcomeSilent    = "silent"
	OutcomeError     = "error"
)

// Metrics holds the Prometheus collectors for turns and dialogs.
type Metrics struct {
	turnsTotal     *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	activitiesSent *prometheus.CounterVec
	dialogEvents   *prometheus.CounterVec
	stackDepth     prometheus.Histogram
}

type config struct {
	namespace  string
	registerer prometheus.Registerer
}

// Option configures Metrics.
type Option func(*config)

// WithNamespace prefixes every metric name. The default is "palaver".
func WithNamespace(ns string) Option {
	return func(c *config) {
		c.namespace = ns
	}
}

// WithRegisterer registers the collectors somewhere other than the default
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

// NewMetrics creates and registers the collectors. Registering twice in the
// same registry panics, as with promauto.
func NewMetrics(opts ...Option) *Metrics {
	cfg := config{namespace: "palaver", registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.registerer)

	return &Metrics{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.namespace,
				Name:      "turns_total",
				Help:      "Total number of turns processed",
			},
			[]string{"channel", "activity_type", "outcome"},
		),
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.namespace,
				Name:      "turn_duration_seconds",
				Help:      "Duration of a turn through the middleware and bot logic",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		activitiesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.namespace,
				Name:      "activities_sent_total",
				Help:      "Total number of outbound activities handed to the channel",
			},
			[]string{"channel", "activity_type"},
		),
		dialogEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.namespace,
				Name:      "dialog_events_total",
				Help:      "Dialog lifecycle events by kind and dialog id",
			},
			[]string{"kind", "dialog_id", "detail"},
		),
		stackDepth: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.namespace,
				Name:      "dialog_stack_depth",
				Help:      "Depth of the dialog stack when a dialog begins",
				Buckets:   []float64{1, 2, 3, 5, 8, 13},
			},
		),
	}
}

// Middleware times every turn and counts outbound activities.
func (m *Metrics) Middleware() bot.Middleware {
	return bot.MiddlewareFunc(func(ctx context.Context, tc *turn.Context, next bot.NextDelegate) error {
		act := tc.Activity()
		channel := act.ChannelID
		start := time.Now()

		tc.OnSendActivities(func(ctx context.Context, tc *turn.Context, acts []*domain.Activity, next turn.SendNext) ([]domain.ResourceResponse, error) {
			res, err := next(ctx)
			if err == nil {
				for _, a := range acts {
					m.activitiesSent.WithLabelValues(channel, string(a.Type)).Inc()
				}
			}
			return res, err
		})

		err := next(ctx)

		outcome := OutcomeSilent
		switch {
		case err != nil:
			outcome = OutcomeError
		case tc.Responded():
			outcome = OutcomeResponded
		}
		m.turnsTotal.WithLabelValues(channel, string(act.Type), outcome).Inc()
		m.turnDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
		return err
	})
}

// Hooks returns lifecycle hooks that count dialog events.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDialogBegin: func(_ context.Context, e *domain.DialogLifecycleEvent) {
			m.dialogEvents.WithLabelValues(string(e.Type), e.DialogID, e.Reason).Inc()
			m.stackDepth.Observe(float64(e.StackDepth))
		},
		OnDialogEnd: func(_ context.Context, e *domain.DialogLifecycleEvent) {
			m.dialogEvents.WithLabelValues(string(e.Type), e.DialogID, e.Reason).Inc()
		},
		OnDialogEvent: func(_ context.Context, e *domain.DialogLifecycleEvent) {
			m.dialogEvents.WithLabelValues(string(e.Type), e.DialogID, e.EventName).Inc()
		},
	}
}
