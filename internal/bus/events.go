package bus

import "time"

type InboundMessage struct {
	Channel    string
	SenderID   string
	SenderName string
	ChatID     string
	Content    string
	Timestamp  time.Time
	Metadata   map[string]any
}

// SessionKey identifies the conversation a message belongs to.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	ReplyTo  string
	Metadata map[string]any
}
