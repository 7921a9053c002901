package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"chatzam/internal/auth"
	"chatzam/internal/blob"
	"chatzam/internal/crypto"
	"chatzam/internal/models"
	"chatzam/internal/observability"
	"chatzam/internal/repository"

	"github.com/google/uuid"
)

// SendResult is the terminal outcome of an asynchronous send.
type SendResult struct {
	MessageID string
	Err       error
}

// SendInput describes an outgoing message.
type SendInput struct {
	ConversationID string
	Content        string
	Kind           models.MessageKind
	MediaURL       string
}

// MessageService sends messages with optimistic local application: the
// message appears on the timeline immediately, the remote write runs in the
// background, and a failed write rolls the timeline back to its pre-send
// state.
type MessageService struct {
	msgRepo  repository.MessageRepository
	convRepo repository.ConversationRepository
	blobs    blob.Store
	log      *observability.Logger
}

// NewMessageService returns a new MessageService.
func NewMessageService(msgRepo repository.MessageRepository, convRepo repository.ConversationRepository, blobs blob.Store, log *observability.Logger) *MessageService {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &MessageService{msgRepo: msgRepo, convRepo: convRepo, blobs: blobs, log: log}
}

// Send applies the message to the timeline and persists it asynchronously.
// The returned channel yields exactly one SendResult. Validation failures
// are returned synchronously and nothing is applied.
func (s *MessageService) Send(ctx context.Context, session auth.Session, tl *Timeline, in SendInput) (<-chan SendResult, error) {
	if session.UserID == "" {
		return nil, models.NewUnauthorizedError("not signed in")
	}
	if strings.TrimSpace(in.ConversationID) == "" {
		return nil, models.NewValidationError("conversation id cannot be empty")
	}
	kind := in.Kind
	if kind == "" {
		kind = models.MessageText
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		SenderID:       session.UserID,
		ClientID:       uuid.NewString(),
		Content:        in.Content,
		Kind:           kind,
		Timestamp:      time.Now().UTC(),
		MediaURL:       in.MediaURL,
	}
	if !msg.HasPayload() {
		return nil, models.NewValidationError("message has no content")
	}

	return s.dispatch(ctx, tl, msg), nil
}

// SendEncrypted encrypts the content with the conversation key before
// sending. The key is created on first use.
func (s *MessageService) SendEncrypted(ctx context.Context, session auth.Session, tl *Timeline, in SendInput, chats *ChatService) (<-chan SendResult, error) {
	if session.UserID == "" {
		return nil, models.NewUnauthorizedError("not signed in")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("message has no content")
	}

	key, err := chats.GetOrCreateEncryptionKey(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	envelope, err := crypto.Encrypt(in.Content, key)
	if err != nil {
		return nil, err
	}

	kind := in.Kind
	if kind == "" {
		kind = models.MessageText
	}
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		SenderID:       session.UserID,
		ClientID:       uuid.NewString(),
		Content:        envelope,
		Encrypted:      true,
		Kind:           kind,
		Timestamp:      time.Now().UTC(),
		MediaURL:       in.MediaURL,
	}
	return s.dispatch(ctx, tl, msg), nil
}

// SendMedia uploads the attachment first, then sends a message referencing
// the stored URL. Upload failure aborts before anything touches the
// timeline.
func (s *MessageService) SendMedia(ctx context.Context, session auth.Session, tl *Timeline, conversationID string, kind models.MessageKind, caption string, media io.Reader) (<-chan SendResult, error) {
	if media == nil {
		return nil, models.NewValidationError("media reader is nil")
	}
	switch kind {
	case models.MessageImage, models.MessageVideo, models.MessageDocument:
	default:
		return nil, models.NewValidationError("message type does not carry media")
	}

	path := fmt.Sprintf("media/%s/%d_%s", strings.ToLower(string(kind)), time.Now().UnixMilli(), uuid.NewString()[:8])
	url, err := s.blobs.Upload(ctx, media, path)
	if err != nil {
		return nil, models.NewRemoteError("upload media", err)
	}

	return s.Send(ctx, session, tl, SendInput{
		ConversationID: conversationID,
		Content:        caption,
		Kind:           kind,
		MediaURL:       url,
	})
}

func (s *MessageService) dispatch(ctx context.Context, tl *Timeline, msg models.Message) <-chan SendResult {
	snap := tl.Apply(msg)

	result := make(chan SendResult, 1)
	go func() {
		defer close(result)
		if err := s.msgRepo.Create(ctx, &msg); err != nil {
			tl.Restore(snap)
			observability.MessagesSent.WithLabelValues("failure", string(msg.Kind)).Inc()
			s.log.Error("message send failed", "conversation_id", msg.ConversationID, "client_id", msg.ClientID, "error", err)
			result <- SendResult{MessageID: msg.ID, Err: err}
			return
		}

		observability.MessagesSent.WithLabelValues("success", string(msg.Kind)).Inc()
		s.updateLastMessage(ctx, msg)
		result <- SendResult{MessageID: msg.ID}
	}()
	return result
}

// updateLastMessage refreshes the conversation preview. The message itself
// is already durable, so a failure here only degrades the list preview.
func (s *MessageService) updateLastMessage(ctx context.Context, msg models.Message) {
	preview := msg.Content
	if msg.Encrypted {
		preview = "Encrypted message"
	}
	if msg.MediaURL != "" && strings.TrimSpace(msg.Content) == "" {
		preview = mediaPreview(msg.Kind)
	}

	err := s.convRepo.UpdateFields(ctx, msg.ConversationID, map[string]any{
		"last_message":           preview,
		"last_message_timestamp": msg.Timestamp,
	})
	if err != nil {
		s.log.Warn("last message preview update failed", "conversation_id", msg.ConversationID, "error", err)
	}
}

func mediaPreview(kind models.MessageKind) string {
	switch kind {
	case models.MessageImage:
		return "Photo"
	case models.MessageVideo:
		return "Video"
	case models.MessageDocument:
		return "Document"
	default:
		return "Attachment"
	}
}

// Subscribe streams the conversation's authoritative message list, merging
// each snapshot into the timeline. The returned channel re-emits the merged
// list after every remote change.
func (s *MessageService) Subscribe(ctx context.Context, tl *Timeline, conversationID string) (<-chan []models.Message, error) {
	updates, err := s.msgRepo.SubscribeByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	out := make(chan []models.Message)
	go func() {
		defer close(out)
		for snapshot := range updates {
			tl.Merge(snapshot)
			select {
			case out <- tl.Messages():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// MarkDelivered flags a message as delivered on the recipient's device.
func (s *MessageService) MarkDelivered(ctx context.Context, messageID string) error {
	return s.msgRepo.MarkDelivered(ctx, messageID)
}

// MarkRead flags a message as read. Reading implies delivery.
func (s *MessageService) MarkRead(ctx context.Context, messageID string) error {
	return s.msgRepo.MarkRead(ctx, messageID)
}

// Decrypt decodes an encrypted message body with the conversation key.
func (s *MessageService) Decrypt(ctx context.Context, msg models.Message, chats *ChatService) (string, error) {
	if !msg.Encrypted {
		return msg.Content, nil
	}
	key, err := chats.GetOrCreateEncryptionKey(ctx, msg.ConversationID)
	if err != nil {
		return "", err
	}
	return crypto.Decrypt(msg.Content, key)
}
