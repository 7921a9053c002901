package repository

import (
	"context"
	"errors"

	"chatzam/internal/models"
	"chatzam/internal/store"
)

// MessageRepository defines the interface for message data operations.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	// ByConversation returns a point-in-time list ordered by timestamp ascending.
	ByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	// SubscribeByConversation re-emits the full ordered message list after
	// every remote mutation in the messages collection.
	SubscribeByConversation(ctx context.Context, conversationID string) (<-chan []models.Message, error)
	MarkDelivered(ctx context.Context, messageID string) error
	MarkRead(ctx context.Context, messageID string) error
	Delete(ctx context.Context, messageID string) error
}

// messageRepository implements MessageRepository.
type messageRepository struct {
	store store.Store
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(s store.Store) MessageRepository {
	return &messageRepository{store: s}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	doc, err := encodeDocument(msg)
	if err != nil {
		return models.NewRemoteError("create message", err)
	}
	if err := r.store.Set(ctx, MessagesCollection, msg.ID, doc); err != nil {
		return models.NewRemoteError("create message", err)
	}
	return nil
}

func conversationMessagesQuery(conversationID string) store.Query {
	return store.Query{
		Collection: MessagesCollection,
		Filters: []store.Filter{
			{Field: "conversation_id", Op: store.OpEqual, Value: conversationID},
		},
		OrderBy: &store.Order{Field: "timestamp"},
	}
}

func (r *messageRepository) ByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	docs, err := r.store.Find(ctx, conversationMessagesQuery(conversationID))
	if err != nil {
		return nil, models.NewRemoteError("query messages", err)
	}
	return decodeMessages(docs), nil
}

func (r *messageRepository) SubscribeByConversation(ctx context.Context, conversationID string) (<-chan []models.Message, error) {
	snapshots, err := r.store.Subscribe(ctx, conversationMessagesQuery(conversationID))
	if err != nil {
		return nil, models.NewRemoteError("subscribe messages", err)
	}

	out := make(chan []models.Message, 1)
	go func() {
		defer close(out)
		for docs := range snapshots {
			select {
			case out <- decodeMessages(docs):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *messageRepository) MarkDelivered(ctx context.Context, messageID string) error {
	return r.updateFlags(ctx, messageID, map[string]any{"is_delivered": true})
}

func (r *messageRepository) MarkRead(ctx context.Context, messageID string) error {
	return r.updateFlags(ctx, messageID, map[string]any{
		"is_delivered": true,
		"is_read":      true,
	})
}

func (r *messageRepository) Delete(ctx context.Context, messageID string) error {
	if err := r.store.Delete(ctx, MessagesCollection, messageID); err != nil {
		return models.NewRemoteError("delete message", err)
	}
	return nil
}

func (r *messageRepository) updateFlags(ctx context.Context, messageID string, fields map[string]any) error {
	err := r.store.Update(ctx, MessagesCollection, messageID, fields)
	if errors.Is(err, store.ErrNotFound) {
		return models.NewNotFoundError("message", messageID)
	}
	if err != nil {
		return models.NewRemoteError("update message", err)
	}
	return nil
}

func decodeMessages(docs []store.Document) []models.Message {
	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		var msg models.Message
		if err := decodeDocument(doc, &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}
