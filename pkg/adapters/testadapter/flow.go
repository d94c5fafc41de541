package testadapter

import (
	"context"
	"testing"

	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFlow scripts a conversation against a bot handler. Every call runs
// immediately and fails the test on the first mismatch.
//
//	testadapter.NewTestFlow(t, adapter, handler).
//		Send("hi").
//		AssertReply("What is your name?").
//		Test("Ana", "Hello Ana")
type TestFlow struct {
	t       testing.TB
	ctx     context.Context
	adapter *Adapter
	handler bot.Handler
}

// NewTestFlow creates a flow that drives handler through adapter.
func NewTestFlow(t testing.TB, adapter *Adapter, handler bot.Handler) *TestFlow {
	return &TestFlow{t: t, ctx: context.Background(), adapter: adapter, handler: handler}
}

// Send runs a turn for a user message.
func (f *TestFlow) Send(text string) *TestFlow {
	f.t.Helper()
	require.NoError(f.t, f.adapter.SendText(f.ctx, text, f.handler), "turn for %q", text)
	return f
}

// SendActivity runs a turn for an arbitrary inbound activity.
func (f *TestFlow) SendActivity(act *domain.Activity) *TestFlow {
	f.t.Helper()
	require.NoError(f.t, f.adapter.ProcessActivity(f.ctx, act, f.handler))
	return f
}

// SendError runs a turn that is expected to fail with target.
func (f *TestFlow) SendError(text string, target error) *TestFlow {
	f.t.Helper()
	err := f.adapter.SendText(f.ctx, text, f.handler)
	require.ErrorIs(f.t, err, target)
	return f
}

// AssertReply dequeues the next reply and checks its text.
func (f *TestFlow) AssertReply(text string) *TestFlow {
	f.t.Helper()
	return f.AssertReplyFunc(func(t testing.TB, reply *domain.Activity) {
		assert.Equal(t, domain.ActivityMessage, reply.Type)
		assert.Equal(t, text, reply.Text)
	})
}

// AssertReplyFunc dequeues the next reply and hands it to check.
func (f *TestFlow) AssertReplyFunc(check func(t testing.TB, reply *domain.Activity)) *TestFlow {
	f.t.Helper()
	reply := f.adapter.NextReply()
	require.NotNil(f.t, reply, "expected a reply")
	check(f.t, reply)
	return f
}

// AssertNoReply checks that nothing is queued.
func (f *TestFlow) AssertNoReply() *TestFlow {
	f.t.Helper()
	assert.Empty(f.t, f.adapter.Replies(), "expected no replies")
	return f
}

// Test sends text and expects reply as the next message.
func (f *TestFlow) Test(text, reply string) *TestFlow {
	f.t.Helper()
	return f.Send(text).AssertReply(reply)
}
