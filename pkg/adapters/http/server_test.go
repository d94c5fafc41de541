package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(ctx context.Context, tc *turn.Context) error {
	act := tc.Activity()
	switch act.Type {
	case domain.ActivityMessage:
		if act.Text == "conflict" {
			return &domain.ConflictError{Key: "k", Expected: "1"}
		}
		if act.Text == "boom" {
			return fmt.Errorf("boom")
		}
		if _, err := tc.SendActivity(ctx, domain.NewTrace("debug", nil, "", "")); err != nil {
			return err
		}
		_, err := tc.SendText(ctx, "echo: "+act.Text)
		return err
	case domain.ActivityConversationUpdate:
		_, err := tc.SendText(ctx, "welcome, caller "+tc.Caller().Kind.String())
		return err
	}
	return nil
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/messages", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func message(text string) string {
	act := domain.NewMessage(text)
	act.ChannelID = "web"
	act.From = domain.ChannelAccount{ID: "user-1"}
	act.Recipient = domain.ChannelAccount{ID: "bot"}
	act.Conversation = domain.ConversationAccount{ID: "conv-1"}
	b, _ := json.Marshal(act)
	return string(b)
}

func TestPostActivity_ReturnsReplies(t *testing.T) {
	h := NewHandler(NewAdapter(), echo)

	w := post(t, h, message("hi"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ActivitiesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Activities, 1, "traces are not delivered outside the emulator")

	reply := resp.Activities[0]
	assert.Equal(t, "echo: hi", reply.Text)
	assert.Equal(t, "conv-1", reply.Conversation.ID)
	assert.Equal(t, "user-1", reply.Recipient.ID)
	assert.NotEmpty(t, reply.ID)
}

func TestPostActivity_ConversationUpdateUsesChannelCaller(t *testing.T) {
	h := NewHandler(NewAdapter(), echo)

	act := &domain.Activity{
		Type:         domain.ActivityConversationUpdate,
		ChannelID:    "web",
		Conversation: domain.ConversationAccount{ID: "conv-1"},
	}
	b, _ := json.Marshal(act)

	w := post(t, h, string(b))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "welcome, caller channel")
}

func TestPostActivity_Errors(t *testing.T) {
	h := NewHandler(NewAdapter(), echo)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"Malformed JSON", "{", http.StatusBadRequest},
		{"Missing Conversation", `{"type":"message","text":"x"}`, http.StatusBadRequest},
		{"Conflict", message("conflict"), http.StatusConflict},
		{"Handler Failure", message("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h, tt.body)
			assert.Equal(t, tt.want, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHealthAndExtraRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("palaver_turns_total 1"))
	})
	h := NewHandler(NewAdapter(), echo, WithHandler("/metrics", metrics))

	for path, want := range map[string]string{
		"/healthz": `{"status":"ok"}`,
		"/metrics": "palaver_turns_total 1",
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, want, w.Body.String(), path)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := NewHandler(NewAdapter(), echo)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/messages", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeEvents_ProactiveMessages(t *testing.T) {
	adapter := NewAdapter()
	srv := httptest.NewServer(NewHandler(adapter, echo))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/conversations/conv-1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	require.Eventually(t, func() bool {
		return adapter.Streams().Subscribers("conv-1") == 1
	}, time.Second, 10*time.Millisecond)

	ref := domain.ConversationReference{
		ChannelID:    "web",
		User:         domain.ChannelAccount{ID: "user-1"},
		Bot:          domain.ChannelAccount{ID: "bot"},
		Conversation: domain.ConversationAccount{ID: "conv-1"},
	}
	err = adapter.ContinueConversation(context.Background(), ref, func(ctx context.Context, tc *turn.Context) error {
		_, err := tc.SendText(ctx, "reminder")
		return err
	})
	require.NoError(t, err)

	var data string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	require.NotEmpty(t, data)

	var act domain.Activity
	require.NoError(t, json.NewDecoder(bytes.NewReader([]byte(data))).Decode(&act))
	assert.Equal(t, "reminder", act.Text)
	assert.Equal(t, "conv-1", act.Conversation.ID)
}

func TestStreamManager_Unsubscribe(t *testing.T) {
	sm := NewStreamManager()

	ch, unsubscribe := sm.Subscribe("c")
	assert.Equal(t, 1, sm.Subscribers("c"))

	sm.Broadcast("c", "one")
	assert.Equal(t, "one", <-ch)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, sm.Subscribers("c"))

	_, open := <-ch
	assert.False(t, open)

	// Broadcasting to a conversation without listeners is a no-op.
	sm.Broadcast("c", "two")
}

func TestAdapter_UpdateAndDeleteUnsupported(t *testing.T) {
	a := NewAdapter()
	tc := turn.New(a, domain.NewMessage("x"))

	_, err := a.UpdateActivity(context.Background(), tc, domain.NewMessage("y"))
	assert.ErrorIs(t, err, domain.ErrNotSupported)
	assert.ErrorIs(t, a.DeleteActivity(context.Background(), tc, domain.ConversationReference{}), domain.ErrNotSupported)
}
