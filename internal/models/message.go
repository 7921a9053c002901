package models

import (
	"strings"
	"time"
)

// MessageKind is the payload type of a message.
type MessageKind string

const (
	MessageText     MessageKind = "TEXT"
	MessageImage    MessageKind = "IMAGE"
	MessageVideo    MessageKind = "VIDEO"
	MessageDocument MessageKind = "DOCUMENT"
)

// Message is a single chat message. Persisted messages are immutable
// except for the delivered/read flags.
type Message struct {
	ID             string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	// ClientID correlates an optimistically applied local entry with the
	// authoritative copy delivered later through the live subscription.
	ClientID  string      `json:"client_id,omitempty"`
	Content   string      `json:"content,omitempty"`
	Encrypted bool        `json:"encrypted"`
	Kind      MessageKind `json:"message_type"`
	Timestamp time.Time   `json:"timestamp"`
	Delivered bool        `json:"is_delivered"`
	Read      bool        `json:"is_read"`
	MediaURL  string      `json:"media_url,omitempty"`
}

// HasPayload reports whether the message carries any content or media.
func (m *Message) HasPayload() bool {
	return strings.TrimSpace(m.Content) != "" || strings.TrimSpace(m.MediaURL) != ""
}
