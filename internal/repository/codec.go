// Package repository provides typed access to the remote document store.
// Every repository does explicit struct-to-document encode/decode at this
// edge; schemaless documents never reach the services.
package repository

import (
	"encoding/json"
	"fmt"

	"chatzam/internal/store"
)

// Collection names.
const (
	ConversationsCollection       = "conversations"
	MessagesCollection            = "messages"
	UsersCollection               = "users"
	CredentialsCollection         = "credentials"
	NotificationRetriesCollection = "notification_retries"
)

func encodeDocument(v any) (store.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	return doc, nil
}

func decodeDocument(doc store.Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	return nil
}
