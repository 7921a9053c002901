// Package models defines the typed entities exchanged with the remote
// document store and the application error taxonomy.
package models

import (
	"sort"
	"strings"
	"time"
)

// ConversationKind distinguishes one-to-one chats from groups.
type ConversationKind string

const (
	KindIndividual ConversationKind = "INDIVIDUAL"
	KindGroup      ConversationKind = "GROUP"
)

// CanonicalConversationID derives the identifier of an individual
// conversation from its two participant ids. It is commutative and
// deterministic: both participants compute the same id regardless of
// argument order, so concurrent creation attempts converge on one document.
func CanonicalConversationID(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, "")
}

// Conversation is a chat document. Individual conversations are keyed by
// the canonical id of their two participants; groups by a generated id.
type Conversation struct {
	ID                   string                    `json:"conversation_id"`
	Participants         []string                  `json:"participants"`
	Kind                 ConversationKind          `json:"kind"`
	ParticipantSummaries map[string]ProfileSummary `json:"participant_summaries,omitempty"`
	LastMessage          string                    `json:"last_message,omitempty"`
	LastMessageTimestamp time.Time                 `json:"last_message_timestamp,omitzero"`
	UnreadCount          int                       `json:"unread_count"`
	// EncryptionKey, once non-empty, never changes for the lifetime of the
	// conversation; all prior ciphertexts depend on it.
	EncryptionKey string    `json:"encryption_key,omitempty"`
	GroupName     string    `json:"group_name,omitempty"`
	GroupImageURL string    `json:"group_image_url,omitempty"`
	Admins        []string  `json:"admins,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
