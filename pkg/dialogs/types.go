package dialogs

// DialogTurnStatus is the outcome of a dialog operation.
type DialogTurnStatus int

const (
	// StatusEmpty means there was nothing on the stack.
	StatusEmpty DialogTurnStatus = iota
	// StatusWaiting means the active dialog expects more input.
	StatusWaiting
	// StatusComplete means the last dialog on the stack ended.
	StatusComplete
	// StatusCancelled means the stack was cancelled.
	StatusCancelled
	// StatusCompleteAndWait means the dialog completed but the host should
	// wait for another activity before starting anything new.
	StatusCompleteAndWait
)

func (s DialogTurnStatus) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusWaiting:
		return "waiting"
	case StatusComplete:
		return "complete"
	case StatusCancelled:
		return "cancelled"
	case StatusCompleteAndWait:
		return "completeAndWait"
	default:
		return "unknown"
	}
}

// DialogTurnResult is returned by every stack operation.
type DialogTurnResult struct {
	Status      DialogTurnStatus
	Result      any
	ParentEnded bool
}

// EndOfTurn is returned by dialogs waiting for the next activity.
var EndOfTurn = DialogTurnResult{Status: StatusWaiting}

// DialogReason tells a dialog why it is being resumed or ended.
type DialogReason int

const (
	ReasonBeginCalled DialogReason = iota
	ReasonContinueCalled
	ReasonEndCalled
	ReasonReplaceCalled
	ReasonCancelCalled
	ReasonNextCalled
)

func (r DialogReason) String() string {
	switch r {
	case ReasonBeginCalled:
		return "beginCalled"
	case ReasonContinueCalled:
		return "continueCalled"
	case ReasonEndCalled:
		return "endCalled"
	case ReasonReplaceCalled:
		return "replaceCalled"
	case ReasonCancelCalled:
		return "cancelCalled"
	case ReasonNextCalled:
		return "nextCalled"
	default:
		return "unknown"
	}
}

// DialogInstance is one persisted stack frame.
type DialogInstance struct {
	ID         string         `json:"id"`
	State      map[string]any `json:"state"`
	StackIndex int            `json:"stackIndex"`
	Version    string         `json:"version,omitempty"`
}

// DialogState is the persisted dialog stack. Index 0 is the active dialog.
type DialogState struct {
	DialogStack []*DialogInstance `json:"dialogStack"`
}

// NewDialogState returns an empty stack.
func NewDialogState() *DialogState {
	return &DialogState{DialogStack: []*DialogInstance{}}
}

// DialogEvent is delivered to dialogs through EmitEvent.
type DialogEvent struct {
	Name   string
	Value  any
	Bubble bool
}

// Built-in event names.
const (
	EventBeginDialog      = "beginDialog"
	EventRepromptDialog   = "repromptDialog"
	EventCancelDialog     = "cancelDialog"
	EventVersionChanged   = "versionChanged"
	EventError            = "error"
	EventActivityReceived = "activityReceived"
)
