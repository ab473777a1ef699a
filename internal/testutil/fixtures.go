package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/craigary/telegram-summary-bot/internal/domain"
)

// Counter for generating unique message ids
var idCounter atomic.Int64

// MessageOptions allows customizing message fixture creation
type MessageOptions struct {
	GroupID   string
	TopicID   *int64
	MessageID int64
	UserName  string
	GroupName string
	Content   domain.Content
	TimeStamp int64
}

// NewTestMessage creates an archived message with sensible defaults.
// Pass options to override specific fields.
func NewTestMessage(opts ...func(*MessageOptions)) *domain.Message {
	n := idCounter.Add(1)
	o := &MessageOptions{
		GroupID:   "-1001234567890",
		MessageID: n,
		UserName:  fmt.Sprintf("testuser%d", n),
		GroupName: "Test Group",
		Content:   domain.TextContent(fmt.Sprintf("message %d", n)),
		TimeStamp: time.Now().UnixMilli(),
	}

	for _, opt := range opts {
		opt(o)
	}

	messageID := o.MessageID
	return &domain.Message{
		ID:        domain.MessageLink(o.GroupID, o.TopicID, o.MessageID),
		GroupID:   o.GroupID,
		TopicID:   o.TopicID,
		UserName:  o.UserName,
		Content:   o.Content,
		MessageID: &messageID,
		GroupName: o.GroupName,
		TimeStamp: o.TimeStamp,
	}
}

// WithGroupID sets the group the message belongs to
func WithGroupID(groupID string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.GroupID = groupID
	}
}

// WithTopicID places the message in a forum topic
func WithTopicID(topicID int64) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.TopicID = &topicID
	}
}

// WithMessageID sets the Telegram message id
func WithMessageID(messageID int64) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.MessageID = messageID
	}
}

// WithUserName sets the sender name
func WithUserName(userName string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.UserName = userName
	}
}

// WithContent sets the message content
func WithContent(content domain.Content) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Content = content
	}
}

// WithText sets plain text content
func WithText(text string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Content = domain.TextContent(text)
	}
}

// WithTimeStamp sets the archive timestamp in Unix milliseconds
func WithTimeStamp(ms int64) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.TimeStamp = ms
	}
}

// NewTestMessages creates count messages in the same group, one second apart
func NewTestMessages(groupID string, count int) []*domain.Message {
	messages := make([]*domain.Message, count)
	base := time.Now().UnixMilli()
	for i := 0; i < count; i++ {
		messages[i] = NewTestMessage(
			WithGroupID(groupID),
			WithTimeStamp(base+int64(i)*1000),
		)
	}
	return messages
}

// ResetIDCounter resets the ID counter (useful for deterministic tests)
func ResetIDCounter() {
	idCounter.Store(0)
}
