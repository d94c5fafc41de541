package domain

import (
	"time"
)

// ActivityType identifies the kind of an Activity.
type ActivityType string

// Standard activity types.
const (
	ActivityMessage            ActivityType = "message"
	ActivityTrace              ActivityType = "trace"
	ActivityTyping             ActivityType = "typing"
	ActivityEvent              ActivityType = "event"
	ActivityConversationUpdate ActivityType = "conversationUpdate"
	ActivityEndOfConversation  ActivityType = "endOfConversation"
	ActivityInvoke             ActivityType = "invoke"
)

// EmulatorChannel is the only channel that receives trace activities.
const EmulatorChannel = "emulator"

// End of conversation codes.
const (
	EndOfConversationCompleted     = "completedSuccessfully"
	EndOfConversationUserCancelled = "userCancelled"
)

// ContinueConversationEvent names the event activity synthesized for proactive turns.
const ContinueConversationEvent = "ContinueConversation"

// ChannelAccount identifies a user or bot on a channel.
type ChannelAccount struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name,omitempty" mapstructure:"name"`
	Role string `json:"role,omitempty" mapstructure:"role"`
}

// ConversationAccount identifies a conversation on a channel.
type ConversationAccount struct {
	ID       string `json:"id" mapstructure:"id"`
	Name     string `json:"name,omitempty" mapstructure:"name"`
	IsGroup  bool   `json:"isGroup,omitempty" mapstructure:"isGroup"`
	TenantID string `json:"tenantId,omitempty" mapstructure:"tenantId"`
}

// Activity is the channel-agnostic message envelope exchanged with a chat channel.
type Activity struct {
	Type         ActivityType        `json:"type" mapstructure:"type"`
	ID           string              `json:"id,omitempty" mapstructure:"id"`
	Timestamp    time.Time           `json:"timestamp,omitempty" mapstructure:"timestamp"`
	ChannelID    string              `json:"channelId,omitempty" mapstructure:"channelId"`
	ServiceURL   string              `json:"serviceUrl,omitempty" mapstructure:"serviceUrl"`
	From         ChannelAccount      `json:"from" mapstructure:"from"`
	Recipient    ChannelAccount      `json:"recipient" mapstructure:"recipient"`
	Conversation ConversationAccount `json:"conversation" mapstructure:"conversation"`
	ReplyToID    string              `json:"replyToId,omitempty" mapstructure:"replyToId"`
	Text         string              `json:"text,omitempty" mapstructure:"text"`
	Locale       string              `json:"locale,omitempty" mapstructure:"locale"`
	Name         string              `json:"name,omitempty" mapstructure:"name"`
	Value        any                 `json:"value,omitempty" mapstructure:"value"`
	ValueType    string              `json:"valueType,omitempty" mapstructure:"valueType"`
	Label        string              `json:"label,omitempty" mapstructure:"label"`
	Code         string              `json:"code,omitempty" mapstructure:"code"`
	ChannelData  any                 `json:"channelData,omitempty" mapstructure:"channelData"`
}

// ConversationReference captures where an activity came from so replies
// (or proactive messages) can be routed back.
type ConversationReference struct {
	ActivityID   string              `json:"activityId,omitempty"`
	User         ChannelAccount      `json:"user"`
	Bot          ChannelAccount      `json:"bot"`
	Conversation ConversationAccount `json:"conversation"`
	ChannelID    string              `json:"channelId"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	Locale       string              `json:"locale,omitempty"`
}

// ResourceResponse carries the id a channel assigned to a delivered activity.
type ResourceResponse struct {
	ID string `json:"id"`
}

// NewMessage creates a message activity with the given text.
func NewMessage(text string) *Activity {
	return &Activity{Type: ActivityMessage, Text: text}
}

// NewTrace creates a trace activity. Traces are never user visible.
func NewTrace(name string, value any, valueType, label string) *Activity {
	return &Activity{
		Type:      ActivityTrace,
		Name:      name,
		Value:     value,
		ValueType: valueType,
		Label:     label,
	}
}

// NewEndOfConversation creates an endOfConversation activity.
func NewEndOfConversation(code string, value any) *Activity {
	return &Activity{Type: ActivityEndOfConversation, Code: code, Value: value}
}

// IsType reports whether the activity has the given type.
func (a *Activity) IsType(t ActivityType) bool {
	return a != nil && a.Type == t
}

// Clone returns a shallow copy of the activity.
func (a *Activity) Clone() *Activity {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// ConversationReference extracts the routing information of an inbound activity.
func (a *Activity) ConversationReference() ConversationReference {
	return ConversationReference{
		ActivityID:   a.ID,
		User:         a.From,
		Bot:          a.Recipient,
		Conversation: a.Conversation,
		ChannelID:    a.ChannelID,
		ServiceURL:   a.ServiceURL,
		Locale:       a.Locale,
	}
}

// ApplyConversationReference binds routing fields onto the activity.
// For outgoing activities From is the bot and Recipient the user, and the
// activity is marked as a reply to the referenced activity.
func (a *Activity) ApplyConversationReference(ref ConversationReference, incoming bool) {
	a.ChannelID = ref.ChannelID
	a.ServiceURL = ref.ServiceURL
	a.Conversation = ref.Conversation
	if ref.Locale != "" && a.Locale == "" {
		a.Locale = ref.Locale
	}

	if incoming {
		a.From = ref.User
		a.Recipient = ref.Bot
		if ref.ActivityID != "" {
			a.ID = ref.ActivityID
		}
		return
	}

	a.From = ref.Bot
	a.Recipient = ref.User
	if ref.ActivityID != "" {
		a.ReplyToID = ref.ActivityID
	}
}

// ContinuationActivity builds the synthetic event used to resume a conversation
// proactively from a stored reference.
func (r ConversationReference) ContinuationActivity() *Activity {
	a := &Activity{
		Type:      ActivityEvent,
		Name:      ContinueConversationEvent,
		Timestamp: time.Now().UTC(),
	}
	a.ApplyConversationReference(r, true)
	return a
}
