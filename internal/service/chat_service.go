// Package service provides the data-consistency and synchronization logic:
// conversation identity and membership, profile summary fan-out, optimistic
// message delivery, encryption key management, and device token upkeep.
package service

import (
	"context"
	"strings"
	"time"

	"chatzam/internal/auth"
	"chatzam/internal/models"
	"chatzam/internal/observability"
	"chatzam/internal/repository"

	"github.com/google/uuid"
)

// CreateGroupInput is the input for creating a group conversation.
type CreateGroupInput struct {
	Name           string
	ImageURL       string
	ParticipantIDs []string
}

// ChatService provides conversation lifecycle and membership logic.
type ChatService struct {
	convRepo repository.ConversationRepository
	userRepo repository.UserRepository
	log      *observability.Logger
}

// NewChatService returns a new ChatService.
func NewChatService(convRepo repository.ConversationRepository, userRepo repository.UserRepository, log *observability.Logger) *ChatService {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &ChatService{convRepo: convRepo, userRepo: userRepo, log: log}
}

// CreateIndividualConversation starts (or returns) the one-to-one
// conversation between the session user and otherUserID. The document is
// keyed by the canonical pair id, so concurrent attempts from both sides
// converge on a single record.
func (s *ChatService) CreateIndividualConversation(ctx context.Context, session auth.Session, otherUserID string) (*models.Conversation, error) {
	if session.UserID == "" {
		return nil, models.NewUnauthorizedError("not signed in")
	}
	if strings.TrimSpace(otherUserID) == "" || otherUserID == session.UserID {
		return nil, models.NewValidationError("individual chat requires two distinct participants")
	}

	participants := []string{session.UserID, otherUserID}
	summaries, err := s.userRepo.Summaries(ctx, participants)
	if err != nil {
		return nil, err
	}

	conv := &models.Conversation{
		ID:                   models.CanonicalConversationID(session.UserID, otherUserID),
		Participants:         participants,
		Kind:                 models.KindIndividual,
		ParticipantSummaries: summaries,
		CreatedBy:            session.UserID,
		CreatedAt:            time.Now().UTC(),
	}

	existing, created, err := s.convRepo.CreateOrGet(ctx, conv)
	if err != nil {
		return nil, err
	}
	if !created {
		s.log.Debug("individual conversation already exists", "conversation_id", conv.ID)
	}
	return existing, nil
}

// CreateGroupConversation creates a group chat with the session user as
// creator and admin.
func (s *ChatService) CreateGroupConversation(ctx context.Context, session auth.Session, in CreateGroupInput) (*models.Conversation, error) {
	if session.UserID == "" {
		return nil, models.NewUnauthorizedError("not signed in")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, models.NewValidationError("group name cannot be empty")
	}

	participants := dedupe(append([]string{session.UserID}, in.ParticipantIDs...))
	if len(participants) < 2 {
		return nil, models.NewValidationError("group must have at least 2 participants")
	}

	summaries, err := s.userRepo.Summaries(ctx, participants)
	if err != nil {
		return nil, err
	}

	conv := &models.Conversation{
		ID:                   uuid.NewString(),
		Participants:         participants,
		Kind:                 models.KindGroup,
		ParticipantSummaries: summaries,
		GroupName:            strings.TrimSpace(in.Name),
		GroupImageURL:        in.ImageURL,
		Admins:               []string{session.UserID},
		CreatedBy:            session.UserID,
		CreatedAt:            time.Now().UTC(),
	}

	created, _, err := s.convRepo.CreateOrGet(ctx, conv)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns a conversation by id.
func (s *ChatService) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return s.convRepo.Get(ctx, id)
}

// Subscribe streams the session user's conversation list, newest activity first.
func (s *ChatService) Subscribe(ctx context.Context, session auth.Session) (<-chan []models.Conversation, error) {
	if session.UserID == "" {
		return nil, models.NewUnauthorizedError("not signed in")
	}
	return s.convRepo.SubscribeByParticipant(ctx, session.UserID)
}

// AddMembers adds users to a group, refreshing their denormalized summaries.
func (s *ChatService) AddMembers(ctx context.Context, id string, memberIDs []string) error {
	conv, err := s.groupByID(ctx, id)
	if err != nil {
		return err
	}

	added := make([]string, 0, len(memberIDs))
	participants := conv.Participants
	for _, member := range memberIDs {
		if !conv.HasParticipant(member) && !contains(added, member) {
			participants = append(participants, member)
			added = append(added, member)
		}
	}
	if len(added) == 0 {
		return nil
	}

	if err := s.convRepo.UpdateParticipants(ctx, id, participants); err != nil {
		return err
	}

	summaries, err := s.userRepo.Summaries(ctx, added)
	if err != nil {
		return err
	}
	for userID, summary := range summaries {
		if err := s.convRepo.UpdateParticipantSummary(ctx, id, userID, summary); err != nil {
			return err
		}
	}
	return nil
}

// RemoveMember removes a user from a group.
func (s *ChatService) RemoveMember(ctx context.Context, id, memberID string) error {
	conv, err := s.groupByID(ctx, id)
	if err != nil {
		return err
	}

	participants := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p != memberID {
			participants = append(participants, p)
		}
	}
	if len(participants) == len(conv.Participants) {
		return nil
	}
	return s.convRepo.UpdateParticipants(ctx, id, participants)
}

// LeaveGroup removes the session user from a group.
func (s *ChatService) LeaveGroup(ctx context.Context, session auth.Session, id string) error {
	return s.RemoveMember(ctx, id, session.UserID)
}

// UpdateGroupInfo updates the group name and/or image. Empty values are
// left unchanged.
func (s *ChatService) UpdateGroupInfo(ctx context.Context, id, name, imageURL string) error {
	if _, err := s.groupByID(ctx, id); err != nil {
		return err
	}

	fields := make(map[string]any)
	if strings.TrimSpace(name) != "" {
		fields["group_name"] = strings.TrimSpace(name)
	}
	if imageURL != "" {
		fields["group_image_url"] = imageURL
	}
	if len(fields) == 0 {
		return nil
	}
	return s.convRepo.UpdateFields(ctx, id, fields)
}

// OpenConversation resets the unread counter when the user enters the chat.
func (s *ChatService) OpenConversation(ctx context.Context, id string) error {
	return s.convRepo.ResetUnread(ctx, id)
}

// GetOrCreateEncryptionKey returns the conversation's symmetric key,
// creating it atomically on first use.
func (s *ChatService) GetOrCreateEncryptionKey(ctx context.Context, id string) (string, error) {
	return s.convRepo.GetOrCreateEncryptionKey(ctx, id)
}

// DeleteConversation removes a conversation document.
func (s *ChatService) DeleteConversation(ctx context.Context, id string) error {
	return s.convRepo.Delete(ctx, id)
}

func (s *ChatService) groupByID(ctx context.Context, id string) (*models.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.Kind != models.KindGroup {
		return nil, models.NewValidationError("conversation is not a group")
	}
	return conv, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
