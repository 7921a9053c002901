package repository

import (
	"context"
	"errors"

	"chatzam/internal/crypto"
	"chatzam/internal/models"
	"chatzam/internal/store"
)

// ConversationRepository defines the interface for conversation data operations.
type ConversationRepository interface {
	// CreateOrGet writes the conversation only if its id is absent and
	// otherwise returns the existing document, so two concurrent creation
	// attempts for the same canonical id converge on one record.
	CreateOrGet(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	Delete(ctx context.Context, id string) error
	// ByParticipant returns a point-in-time list, not a live subscription.
	ByParticipant(ctx context.Context, userID string) ([]models.Conversation, error)
	// SubscribeByParticipant re-emits the full current list, ordered by
	// last-message timestamp descending, after every remote mutation.
	SubscribeByParticipant(ctx context.Context, userID string) (<-chan []models.Conversation, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	UpdateParticipantSummary(ctx context.Context, id, userID string, summary models.ProfileSummary) error
	UpdateParticipants(ctx context.Context, id string, participants []string) error
	ResetUnread(ctx context.Context, id string) error
	// GetOrCreateEncryptionKey returns the conversation key, generating and
	// persisting a fresh 256-bit key atomically when none exists yet. The
	// stored key never changes once set.
	GetOrCreateEncryptionKey(ctx context.Context, id string) (string, error)
}

// conversationRepository implements ConversationRepository.
type conversationRepository struct {
	store store.Store
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(s store.Store) ConversationRepository {
	return &conversationRepository{store: s}
}

func (r *conversationRepository) CreateOrGet(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	doc, err := encodeDocument(conv)
	if err != nil {
		return nil, false, models.NewRemoteError("create conversation", err)
	}

	created, err := r.store.Create(ctx, ConversationsCollection, conv.ID, doc)
	if err != nil {
		return nil, false, models.NewRemoteError("create conversation", err)
	}
	if created {
		return conv, true, nil
	}

	existing, err := r.Get(ctx, conv.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *conversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	doc, err := r.store.Get(ctx, ConversationsCollection, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.NewNotFoundError("conversation", id)
	}
	if err != nil {
		return nil, models.NewRemoteError("get conversation", err)
	}

	var conv models.Conversation
	if err := decodeDocument(doc, &conv); err != nil {
		return nil, models.NewRemoteError("get conversation", err)
	}
	return &conv, nil
}

func (r *conversationRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, ConversationsCollection, id); err != nil {
		return models.NewRemoteError("delete conversation", err)
	}
	return nil
}

func participantQuery(userID string) store.Query {
	return store.Query{
		Collection: ConversationsCollection,
		Filters: []store.Filter{
			{Field: "participants", Op: store.OpArrayContains, Value: userID},
		},
		OrderBy: &store.Order{Field: "last_message_timestamp", Desc: true},
	}
}

func (r *conversationRepository) ByParticipant(ctx context.Context, userID string) ([]models.Conversation, error) {
	docs, err := r.store.Find(ctx, participantQuery(userID))
	if err != nil {
		return nil, models.NewRemoteError("query conversations", err)
	}
	return decodeConversations(docs), nil
}

func (r *conversationRepository) SubscribeByParticipant(ctx context.Context, userID string) (<-chan []models.Conversation, error) {
	snapshots, err := r.store.Subscribe(ctx, participantQuery(userID))
	if err != nil {
		return nil, models.NewRemoteError("subscribe conversations", err)
	}

	out := make(chan []models.Conversation, 1)
	go func() {
		defer close(out)
		for docs := range snapshots {
			select {
			case out <- decodeConversations(docs):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *conversationRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	err := r.store.Update(ctx, ConversationsCollection, id, fields)
	if errors.Is(err, store.ErrNotFound) {
		return models.NewNotFoundError("conversation", id)
	}
	if err != nil {
		return models.NewRemoteError("update conversation", err)
	}
	return nil
}

func (r *conversationRepository) UpdateParticipantSummary(ctx context.Context, id, userID string, summary models.ProfileSummary) error {
	encoded, err := encodeDocument(summary)
	if err != nil {
		return models.NewRemoteError("update participant summary", err)
	}
	return r.UpdateFields(ctx, id, map[string]any{
		"participant_summaries." + userID: map[string]any(encoded),
	})
}

func (r *conversationRepository) UpdateParticipants(ctx context.Context, id string, participants []string) error {
	return r.UpdateFields(ctx, id, map[string]any{
		"participants": toAnySlice(participants),
	})
}

func (r *conversationRepository) ResetUnread(ctx context.Context, id string) error {
	return r.UpdateFields(ctx, id, map[string]any{"unread_count": 0})
}

func (r *conversationRepository) GetOrCreateEncryptionKey(ctx context.Context, id string) (string, error) {
	doc, err := r.store.Transform(ctx, ConversationsCollection, id, func(doc store.Document) (store.Document, error) {
		if key, _ := doc["encryption_key"].(string); key != "" {
			return nil, nil
		}
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		doc["encryption_key"] = key
		return doc, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", models.NewNotFoundError("conversation", id)
	}
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", models.NewRemoteError("get or create encryption key", err)
	}

	key, _ := doc["encryption_key"].(string)
	return key, nil
}

func decodeConversations(docs []store.Document) []models.Conversation {
	conversations := make([]models.Conversation, 0, len(docs))
	for _, doc := range docs {
		var conv models.Conversation
		if err := decodeDocument(doc, &conv); err != nil {
			continue
		}
		conversations = append(conversations, conv)
	}
	return conversations
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
