package service

import (
	"context"
	"io"

	"chatzam/internal/models"
)

// stubConversationRepo implements repository.ConversationRepository with
// overridable function fields.
type stubConversationRepo struct {
	CreateOrGetFn              func(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error)
	GetFn                      func(ctx context.Context, id string) (*models.Conversation, error)
	DeleteFn                   func(ctx context.Context, id string) error
	ByParticipantFn            func(ctx context.Context, userID string) ([]models.Conversation, error)
	SubscribeByParticipantFn   func(ctx context.Context, userID string) (<-chan []models.Conversation, error)
	UpdateFieldsFn             func(ctx context.Context, id string, fields map[string]any) error
	UpdateParticipantSummaryFn func(ctx context.Context, id, userID string, summary models.ProfileSummary) error
	UpdateParticipantsFn       func(ctx context.Context, id string, participants []string) error
	ResetUnreadFn              func(ctx context.Context, id string) error
	GetOrCreateEncryptionKeyFn func(ctx context.Context, id string) (string, error)
}

func (s *stubConversationRepo) CreateOrGet(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	if s.CreateOrGetFn != nil {
		return s.CreateOrGetFn(ctx, conv)
	}
	return conv, true, nil
}

func (s *stubConversationRepo) Get(ctx context.Context, id string) (*models.Conversation, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, id)
	}
	return nil, models.NewNotFoundError("conversation", id)
}

func (s *stubConversationRepo) Delete(ctx context.Context, id string) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, id)
	}
	return nil
}

func (s *stubConversationRepo) ByParticipant(ctx context.Context, userID string) ([]models.Conversation, error) {
	if s.ByParticipantFn != nil {
		return s.ByParticipantFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubConversationRepo) SubscribeByParticipant(ctx context.Context, userID string) (<-chan []models.Conversation, error) {
	if s.SubscribeByParticipantFn != nil {
		return s.SubscribeByParticipantFn(ctx, userID)
	}
	ch := make(chan []models.Conversation)
	close(ch)
	return ch, nil
}

func (s *stubConversationRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if s.UpdateFieldsFn != nil {
		return s.UpdateFieldsFn(ctx, id, fields)
	}
	return nil
}

func (s *stubConversationRepo) UpdateParticipantSummary(ctx context.Context, id, userID string, summary models.ProfileSummary) error {
	if s.UpdateParticipantSummaryFn != nil {
		return s.UpdateParticipantSummaryFn(ctx, id, userID, summary)
	}
	return nil
}

func (s *stubConversationRepo) UpdateParticipants(ctx context.Context, id string, participants []string) error {
	if s.UpdateParticipantsFn != nil {
		return s.UpdateParticipantsFn(ctx, id, participants)
	}
	return nil
}

func (s *stubConversationRepo) ResetUnread(ctx context.Context, id string) error {
	if s.ResetUnreadFn != nil {
		return s.ResetUnreadFn(ctx, id)
	}
	return nil
}

func (s *stubConversationRepo) GetOrCreateEncryptionKey(ctx context.Context, id string) (string, error) {
	if s.GetOrCreateEncryptionKeyFn != nil {
		return s.GetOrCreateEncryptionKeyFn(ctx, id)
	}
	return "", nil
}

// stubUserRepo implements repository.UserRepository with overridable
// function fields.
type stubUserRepo struct {
	CreateFn            func(ctx context.Context, user *models.User) error
	GetFn               func(ctx context.Context, id string) (*models.User, error)
	UpdateFn            func(ctx context.Context, user *models.User) error
	SearchFn            func(ctx context.Context, query string) ([]models.User, error)
	AddDeviceTokenFn    func(ctx context.Context, userID, token string) error
	RemoveDeviceTokenFn func(ctx context.Context, userID, token string) error
	SummariesFn         func(ctx context.Context, ids []string) (map[string]models.ProfileSummary, error)
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, user)
	}
	return nil
}

func (s *stubUserRepo) Get(ctx context.Context, id string) (*models.User, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, id)
	}
	return &models.User{ID: id, DisplayName: "User " + id}, nil
}

func (s *stubUserRepo) Update(ctx context.Context, user *models.User) error {
	if s.UpdateFn != nil {
		return s.UpdateFn(ctx, user)
	}
	return nil
}

func (s *stubUserRepo) Search(ctx context.Context, query string) ([]models.User, error) {
	if s.SearchFn != nil {
		return s.SearchFn(ctx, query)
	}
	return nil, nil
}

func (s *stubUserRepo) AddDeviceToken(ctx context.Context, userID, token string) error {
	if s.AddDeviceTokenFn != nil {
		return s.AddDeviceTokenFn(ctx, userID, token)
	}
	return nil
}

func (s *stubUserRepo) RemoveDeviceToken(ctx context.Context, userID, token string) error {
	if s.RemoveDeviceTokenFn != nil {
		return s.RemoveDeviceTokenFn(ctx, userID, token)
	}
	return nil
}

func (s *stubUserRepo) Summaries(ctx context.Context, ids []string) (map[string]models.ProfileSummary, error) {
	if s.SummariesFn != nil {
		return s.SummariesFn(ctx, ids)
	}
	out := make(map[string]models.ProfileSummary, len(ids))
	for _, id := range ids {
		out[id] = models.ProfileSummary{UserID: id, DisplayName: "User " + id}
	}
	return out, nil
}

// stubMessageRepo implements repository.MessageRepository with overridable
// function fields.
type stubMessageRepo struct {
	CreateFn                  func(ctx context.Context, msg *models.Message) error
	ByConversationFn          func(ctx context.Context, conversationID string) ([]models.Message, error)
	SubscribeByConversationFn func(ctx context.Context, conversationID string) (<-chan []models.Message, error)
	MarkDeliveredFn           func(ctx context.Context, messageID string) error
	MarkReadFn                func(ctx context.Context, messageID string) error
	DeleteFn                  func(ctx context.Context, messageID string) error
}

func (s *stubMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, msg)
	}
	return nil
}

func (s *stubMessageRepo) ByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	if s.ByConversationFn != nil {
		return s.ByConversationFn(ctx, conversationID)
	}
	return nil, nil
}

func (s *stubMessageRepo) SubscribeByConversation(ctx context.Context, conversationID string) (<-chan []models.Message, error) {
	if s.SubscribeByConversationFn != nil {
		return s.SubscribeByConversationFn(ctx, conversationID)
	}
	ch := make(chan []models.Message)
	close(ch)
	return ch, nil
}

func (s *stubMessageRepo) MarkDelivered(ctx context.Context, messageID string) error {
	if s.MarkDeliveredFn != nil {
		return s.MarkDeliveredFn(ctx, messageID)
	}
	return nil
}

func (s *stubMessageRepo) MarkRead(ctx context.Context, messageID string) error {
	if s.MarkReadFn != nil {
		return s.MarkReadFn(ctx, messageID)
	}
	return nil
}

func (s *stubMessageRepo) Delete(ctx context.Context, messageID string) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, messageID)
	}
	return nil
}

// stubBlobStore implements blob.Store in memory.
type stubBlobStore struct {
	UploadFn func(ctx context.Context, r io.Reader, path string) (string, error)
}

func (s *stubBlobStore) Upload(ctx context.Context, r io.Reader, path string) (string, error) {
	if s.UploadFn != nil {
		return s.UploadFn(ctx, r, path)
	}
	return "https://blobs.test/" + path, nil
}

func (s *stubBlobStore) Download(ctx context.Context, url string) ([]byte, error) {
	return nil, models.NewNotFoundError("blob", url)
}

func (s *stubBlobStore) Delete(ctx context.Context, url string) error {
	return nil
}
