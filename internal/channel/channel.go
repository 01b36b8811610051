package channel

import (
	"context"
	"time"
)

// Kind tells a channel what an outbound message is for.
type Kind int

const (
	// KindAnswer is the final answer of a run.
	KindAnswer Kind = iota
	// KindClarification is a question the run waits on; the next message from the
	// same conversation answers it.
	KindClarification
)

// InboundMessage is a query or clarification answer received from a channel.
type InboundMessage struct {
	ChannelName string
	SenderID    string
	SenderName  string
	ChatID      string
	MessageID   string
	Text        string
	Timestamp   time.Time
}

// Conversation identifies the chat msg belongs to across all channels.
func (m InboundMessage) Conversation() string {
	return ConversationKey(m.ChannelName, m.ChatID)
}

// ConversationKey joins a channel name and chat ID.
func ConversationKey(channelName, chatID string) string {
	return channelName + ":" + chatID
}

// OutboundMessage is an answer or question sent back through a channel.
type OutboundMessage struct {
	ChatID  string
	Text    string
	Kind    Kind
	ReplyTo string // optional inbound MessageID
}

// Handler receives inbound messages. Channels call it from their own goroutine.
type Handler func(InboundMessage)

// Channel is a transport that delivers queries to the runner and carries replies back.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) error
	OnMessage(handler Handler)
	IsRunning() bool
}
