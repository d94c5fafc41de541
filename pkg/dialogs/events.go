package dialogs

import (
	"context"

	"github.com/aretw0/palaver/pkg/domain"
)

// EmitEvent delivers an event to the active dialog of this context, or of
// the innermost nested context when fromLeaf is set. It reports whether a
// handler claimed the event.
func (dc *DialogContext) EmitEvent(ctx context.Context, name string, value any, bubble, fromLeaf bool) (bool, error) {
	target := dc
	if fromLeaf {
		for {
			child, err := target.Child()
			if err != nil {
				return false, err
			}
			if child == nil {
				break
			}
			target = child
		}
	}

	inst := target.ActiveDialog()
	if inst == nil {
		return false, nil
	}
	d := target.FindDialog(inst.ID)
	if d == nil {
		return false, nil
	}

	target.fire(ctx, target.hooks.OnDialogEvent, domain.EventDialogEvent, inst.ID, "", name)

	e := DialogEvent{Name: name, Value: value, Bubble: bubble}
	if h, ok := d.(EventHandler); ok {
		return h.OnDialogEvent(ctx, target, e)
	}
	return BubbleEvent(ctx, target, d, e)
}

// BubbleEvent runs the default event protocol for dialog d, the active dialog
// of dc: pre-bubble, then the parent chain, then post-bubble. Dialogs that
// implement EventHandler can call it to keep the default behavior.
func BubbleEvent(ctx context.Context, dc *DialogContext, d Dialog, e DialogEvent) (bool, error) {
	if pre, ok := d.(PreBubbler); ok {
		handled, err := pre.OnPreBubbleEvent(ctx, dc, e)
		if err != nil || handled {
			return handled, err
		}
	}

	if e.Bubble && dc.parent != nil {
		handled, err := dc.parent.EmitEvent(ctx, e.Name, e.Value, true, false)
		if err != nil || handled {
			return handled, err
		}
	}

	if post, ok := d.(PostBubbler); ok {
		return post.OnPostBubbleEvent(ctx, dc, e)
	}
	return false, nil
}
