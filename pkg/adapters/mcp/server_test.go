package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter() bot.Handler {
	seen := map[string]int{}
	return func(ctx context.Context, tc *turn.Context) error {
		act := tc.Activity()
		seen[act.Conversation.ID]++
		if _, err := tc.SendActivity(ctx, domain.NewTrace("debug", nil, "", "")); err != nil {
			return err
		}
		_, err := tc.SendText(ctx, fmt.Sprintf("%s #%d: %s", act.From.ID, seen[act.Conversation.ID], act.Text))
		return err
	}
}

func TestSendMessage(t *testing.T) {
	s := NewServer(NewAdapter(), counter(), "v0.1.0")
	ctx := context.Background()

	got, err := s.handleSendMessage(ctx, mcp.CallToolRequest{}, SendMessageArgs{ConversationID: "c1", UserID: "ana", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ConversationID)
	require.Len(t, got.Replies, 1, "traces are not returned")
	assert.Equal(t, Reply{Type: "message", Text: "ana #1: hi"}, got.Replies[0])

	got, err = s.handleSendMessage(ctx, mcp.CallToolRequest{}, SendMessageArgs{ConversationID: "c1", Text: "again"})
	require.NoError(t, err)
	assert.Equal(t, "mcp-user #2: again", got.Replies[0].Text)
}

func TestSendMessage_Errors(t *testing.T) {
	failing := func(ctx context.Context, tc *turn.Context) error {
		return &domain.ConflictError{Key: "k", Expected: "1"}
	}
	s := NewServer(NewAdapter(), failing, "v0.1.0")

	_, err := s.handleSendMessage(context.Background(), mcp.CallToolRequest{}, SendMessageArgs{Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrMissingArgument)

	_, err = s.handleSendMessage(context.Background(), mcp.CallToolRequest{}, SendMessageArgs{ConversationID: "c", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestToolsList(t *testing.T) {
	s := NewServer(NewAdapter(), counter(), "v0.1.0")

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := s.MCPServer().HandleMessage(context.Background(), msg)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"send_message"`)
	assert.Contains(t, string(raw), `"conversation_id"`)
}

func TestAdapter_SendOutsideToolCall(t *testing.T) {
	a := NewAdapter()
	tc := turn.New(a, domain.NewMessage("x"))

	_, err := a.SendActivities(context.Background(), tc, []*domain.Activity{domain.NewMessage("y")})
	assert.ErrorIs(t, err, domain.ErrNotSupported)
}
