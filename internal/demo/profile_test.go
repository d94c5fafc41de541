package demo_test

import (
	"context"
	"testing"

	"github.com/aretw0/palaver"
	"github.com/aretw0/palaver/internal/demo"
	"github.com/aretw0/palaver/pkg/adapters/memory"
	"github.com/aretw0/palaver/pkg/adapters/testadapter"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlow(t *testing.T, store *memory.Store) *testadapter.TestFlow {
	t.Helper()
	b, err := demo.NewBot(palaver.WithStorage(store))
	require.NoError(t, err)

	adapter := testadapter.New()
	b.Install(adapter.Adapter)
	return testadapter.NewTestFlow(t, adapter, b.Handler())
}

func TestProfile_FullConversation(t *testing.T) {
	store := memory.NewStore()

	newFlow(t, store).
		SendActivity(&domain.Activity{Type: domain.ActivityConversationUpdate}).
		AssertReply(demo.Welcome).
		Test("hi", demo.AskName).
		Test("help", demo.HelpText).
		AssertReply(demo.AskName).
		Test("Ana", demo.AskAge).
		Test("abc", demo.RetryAge).
		Test("31", "Save Ana, 31 years old?").
		Test("yes", "Saved. Nice to meet you, Ana!").
		AssertNoReply()

	items, err := store.Read(context.Background(), []string{"test/users/user1"})
	require.NoError(t, err)
	require.Contains(t, items, "test/users/user1")
	profile, ok := items["test/users/user1"].Data["profile"].(map[string]any)
	require.True(t, ok, "profile is persisted in user state")
	assert.Equal(t, "Ana", profile["name"])
	assert.EqualValues(t, 31, profile["age"])
}

func TestProfile_WelcomeBack(t *testing.T) {
	store := memory.NewStore()

	newFlow(t, store).
		Test("hi", demo.AskName).
		Test("Bia", demo.AskAge).
		Test("40", "Save Bia, 40 years old?").
		Test("y", "Saved. Nice to meet you, Bia!")

	// A new process over the same storage remembers the user.
	newFlow(t, store).
		Test("hello", "Welcome back, Bia! Let's update your profile.").
		AssertReply(demo.AskName)
}

func TestProfile_CancelAndDiscard(t *testing.T) {
	tests := []struct {
		name   string
		script func(f *testadapter.TestFlow)
	}{
		{
			name: "Cancel",
			script: func(f *testadapter.TestFlow) {
				f.Test("hi", demo.AskName).
					Test("cancel", demo.CancelText).
					AssertNoReply().
					Test("again", demo.AskName)
			},
		},
		{
			name: "Discard",
			script: func(f *testadapter.TestFlow) {
				f.Test("hi", demo.AskName).
					Test("Caio", demo.AskAge).
					Test("25", "Save Caio, 25 years old?").
					Test("no", demo.DiscardText).
					AssertNoReply()
			},
		},
		{
			name: "Too Many Invalid Ages",
			script: func(f *testadapter.TestFlow) {
				f.Test("hi", demo.AskName).
					Test("Duda", demo.AskAge).
					Test("0", demo.RetryAge).
					Test("12.5", demo.RetryAge).
					Test("old", "Let's try again later.").
					AssertNoReply()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.script(newFlow(t, memory.NewStore()))
		})
	}
}
