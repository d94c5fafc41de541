/*
Package dialogs implements a persisted, stack based dialog state machine.

A DialogSet registers dialogs by id. For each turn it creates a DialogContext
over the conversation's DialogState, a stack of DialogInstance records where
index 0 is the active dialog. BeginDialog pushes, EndDialog pops and resumes
the new top with the result, and the whole stack survives between turns in
conversation state, so a dialog that pushed a child genuinely suspends until
the child completes turns later.

WaterfallDialog runs an ordered list of steps. ComponentDialog wraps its own
DialogSet and keeps the inner stack inside its instance state.

# Events

EmitEvent delivers a DialogEvent to the active dialog. Unless the dialog
overrides OnDialogEvent, the default protocol is:

 1. OnPreBubbleEvent at the originating level. Handled stops everything.
 2. If the event bubbles and a parent context exists, the parent's active
    dialog receives it through the same protocol, up to the root.
 3. If nothing claimed it, OnPostBubbleEvent at the originating level.

Post-bubble handlers therefore run from the root back down to the origin.

# Versions

Every instance stores the version of its dialog when it was pushed. On each
ContinueDialog the stored version is compared with the live one; a mismatch
refreshes the stored value and emits a bubbling versionChanged event before
the dialog continues, so a container can restart instead of resuming stale
step indices after a redeploy.
*/
package dialogs
