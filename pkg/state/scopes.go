package state

import (
	"fmt"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/ports"
	"github.com/aretw0/palaver/pkg/turn"
)

// Scope names.
const (
	ConversationScope        = "ConversationState"
	UserScope                = "UserState"
	PrivateConversationScope = "PrivateConversationState"
)

// NewConversationState creates state shared by everyone in a conversation.
func NewConversationState(storage ports.Storage) *BotState {
	return New(storage, ConversationScope, ConversationKey)
}

// NewUserState creates state that follows a user across conversations.
func NewUserState(storage ports.Storage) *BotState {
	return New(storage, UserScope, UserKey)
}

// NewPrivateConversationState creates state for one user inside one conversation.
func NewPrivateConversationState(storage ports.Storage) *BotState {
	return New(storage, PrivateConversationScope, PrivateConversationKey)
}

// ConversationKey returns {channel}/conversations/{conversation}.
func ConversationKey(tc *turn.Context) (string, error) {
	a := tc.Activity()
	if a == nil || a.ChannelID == "" || a.Conversation.ID == "" {
		return "", fmt.Errorf("state: conversation key needs channel and conversation ids: %w", domain.ErrInvalidActivity)
	}
	return a.ChannelID + "/conversations/" + a.Conversation.ID, nil
}

// UserKey returns {channel}/users/{user}.
func UserKey(tc *turn.Context) (string, error) {
	a := tc.Activity()
	if a == nil || a.ChannelID == "" || a.From.ID == "" {
		return "", fmt.Errorf("state: user key needs channel and from ids: %w", domain.ErrInvalidActivity)
	}
	return a.ChannelID + "/users/" + a.From.ID, nil
}

// PrivateConversationKey returns {channel}/conversations/{conversation}/users/{user}.
func PrivateConversationKey(tc *turn.Context) (string, error) {
	a := tc.Activity()
	if a == nil || a.ChannelID == "" || a.Conversation.ID == "" || a.From.ID == "" {
		return "", fmt.Errorf("state: private conversation key needs channel, conversation and from ids: %w", domain.ErrInvalidActivity)
	}
	return a.ChannelID + "/conversations/" + a.Conversation.ID + "/users/" + a.From.ID, nil
}
