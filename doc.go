/*
Package palaver is a framework for conversational bots built from dialogs.

A bot receives activities (messages, events, conversation updates) from a
channel, runs them through a middleware pipeline and hands each one to a
stack of dialogs whose state is persisted between turns.

# Concept

Each inbound activity starts a turn. A turn.Context carries the activity and
the chains used to send, update and delete outbound activities. Middleware
(pkg/bot) wraps the turn: logging, metrics, per conversation locking
(pkg/session) and automatic saving of state scopes (pkg/state).

Dialogs (pkg/dialogs) form a stack per conversation. A WaterfallDialog runs
a fixed sequence of steps across turns, a ComponentDialog encapsulates an
inner stack, and prompts (pkg/dialogs/prompts) collect and validate input.
The stack is stored as a property of conversation state, so any
ports.Storage can hold it: memory, file, Redis or SQL.

Storage writes use eTags for optimistic concurrency. A stale writer fails
with domain.ErrConcurrencyConflict instead of overwriting a newer turn.

# Usage

	greet := dialogs.NewWaterfallDialog("greet",
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			return step.BeginDialog(ctx, "name", "What is your name?")
		},
		func(ctx context.Context, step *dialogs.WaterfallStepContext) (dialogs.DialogTurnResult, error) {
			step.TurnContext().SendText(ctx, fmt.Sprintf("Hello, %v!", step.Result()))
			return step.EndDialog(ctx, nil)
		},
	)

	b, err := palaver.New(greet, palaver.WithDialogs(prompts.NewText("name")))
	if err != nil {
		log.Fatal(err)
	}

	adapter := console.New(os.Stdin, os.Stdout)
	b.Install(adapter.Adapter)
	adapter.Listen(ctx, b.Handler())
*/
package palaver
