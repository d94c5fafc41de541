package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventDialogBegin EventType = "dialog_begin"
	EventDialogEnd   EventType = "dialog_end"
	EventDialogEvent EventType = "dialog_event"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// DialogLifecycleEvent describes a dialog being pushed, popped or notified.
type DialogLifecycleEvent struct {
	EventBase
	DialogID   string `json:"dialog_id"`
	Reason     string `json:"reason,omitempty"`
	EventName  string `json:"event_name,omitempty"`
	StackDepth int    `json:"stack_depth"`
}

// LifecycleHooks defines callbacks for dialog observability. Nil hooks are skipped.
type LifecycleHooks struct {
	OnDialogBegin func(context.Context, *DialogLifecycleEvent)
	OnDialogEnd   func(context.Context, *DialogLifecycleEvent)
	OnDialogEvent func(context.Context, *DialogLifecycleEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnDialogBegin: chain(h.OnDialogBegin, other.OnDialogBegin),
		OnDialogEnd:   chain(h.OnDialogEnd, other.OnDialogEnd),
		OnDialogEvent: chain(h.OnDialogEvent, other.OnDialogEvent),
	}
}

func chain(a, b func(context.Context, *DialogLifecycleEvent)) func(context.Context, *DialogLifecycleEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *DialogLifecycleEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
