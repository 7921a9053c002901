// Package notifications fans data messages out to recipient devices and
// keeps the device token sets healthy: invalid tokens are pruned on
// delivery failure and transient failures are parked for retry.
package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatzam/internal/models"
	"chatzam/internal/observability"
	"chatzam/internal/repository"
	"chatzam/internal/store"

	"github.com/google/uuid"
)

// ErrInvalidToken is returned by a Sender when the push service reports the
// token as unregistered. The dispatcher prunes such tokens instead of
// retrying them.
var ErrInvalidToken = errors.New("device token is no longer registered")

// Sender delivers one data message to one device token.
type Sender interface {
	Send(ctx context.Context, token string, msg DataMessage) error
}

// DataMessage is the payload pushed to a device. The client uses the ids to
// deep-link into the conversation; nothing here is displayed directly.
type DataMessage struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
}

// RetryDelays are the waits before each redelivery attempt.
var RetryDelays = []time.Duration{1 * time.Minute, 5 * time.Minute, 15 * time.Minute}

// MaxRetryAttempts bounds redelivery; after this the record is dropped.
const MaxRetryAttempts = 3

type retryRecord struct {
	ID             string    `json:"retry_id"`
	Token          string    `json:"token"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Attempt        int       `json:"attempt"`
	NextAttemptAt  time.Time `json:"next_attempt_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Dispatcher pushes new-message notifications to every recipient device.
type Dispatcher struct {
	sender   Sender
	userRepo repository.UserRepository
	store    store.Store
	log      *observability.Logger
}

// NewDispatcher returns a new Dispatcher.
func NewDispatcher(sender Sender, userRepo repository.UserRepository, st store.Store, log *observability.Logger) *Dispatcher {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &Dispatcher{sender: sender, userRepo: userRepo, store: st, log: log}
}

// DispatchForMessage sends the data message to every device of every
// participant except the sender. Tokens are read from the conversation's
// denormalized summaries, so no per-recipient profile fetch is needed.
// Deliveries run concurrently; one bad token never blocks the rest.
func (d *Dispatcher) DispatchForMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	payload := DataMessage{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
	}
	if sender, ok := conv.ParticipantSummaries[msg.SenderID]; ok {
		payload.SenderName = sender.DisplayName
	}

	var wg sync.WaitGroup
	for userID, summary := range conv.ParticipantSummaries {
		if userID == msg.SenderID {
			continue
		}
		for _, token := range summary.DeviceTokens {
			wg.Add(1)
			go func(userID, token string) {
				defer wg.Done()
				d.deliver(ctx, userID, token, payload)
			}(userID, token)
		}
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, userID, token string, payload DataMessage) {
	err := d.sender.Send(ctx, token, payload)
	if err == nil {
		observability.NotificationsDispatched.WithLabelValues("success").Inc()
		return
	}

	if errors.Is(err, ErrInvalidToken) {
		observability.NotificationsDispatched.WithLabelValues("pruned").Inc()
		if pruneErr := d.userRepo.RemoveDeviceToken(ctx, userID, token); pruneErr != nil {
			d.log.Warn("invalid token prune failed", "user_id", userID, "error", pruneErr)
		}
		return
	}

	observability.NotificationsDispatched.WithLabelValues("failure").Inc()
	d.scheduleRetry(ctx, retryRecord{
		ID:             uuid.NewString(),
		Token:          token,
		UserID:         userID,
		ConversationID: payload.ConversationID,
		MessageID:      payload.MessageID,
		SenderID:       payload.SenderID,
		SenderName:     payload.SenderName,
		Attempt:        1,
		NextAttemptAt:  time.Now().UTC().Add(RetryDelays[0]),
		CreatedAt:      time.Now().UTC(),
	})
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, rec retryRecord) {
	doc, err := encodeRetry(rec)
	if err != nil {
		d.log.Error("retry record encode failed", "message_id", rec.MessageID, "error", err)
		return
	}
	if err := d.store.Set(ctx, repository.NotificationRetriesCollection, rec.ID, doc); err != nil {
		d.log.Error("retry record write failed", "message_id", rec.MessageID, "error", err)
	}
}

// ProcessRetries redelivers every retry record that is due at now. A
// successful or invalid-token delivery removes the record; a failure
// reschedules it with the next backoff delay until the attempt cap, after
// which the record is dropped.
func (d *Dispatcher) ProcessRetries(ctx context.Context, now time.Time) error {
	docs, err := d.store.Find(ctx, store.Query{Collection: repository.NotificationRetriesCollection})
	if err != nil {
		return models.NewRemoteError("list notification retries", err)
	}

	for _, doc := range docs {
		rec, err := decodeRetry(doc)
		if err != nil {
			d.log.Warn("skipping malformed retry record", "error", err)
			continue
		}
		if rec.NextAttemptAt.After(now) {
			continue
		}
		d.processOne(ctx, rec)
	}
	return nil
}

func (d *Dispatcher) processOne(ctx context.Context, rec retryRecord) {
	payload := DataMessage{
		ConversationID: rec.ConversationID,
		MessageID:      rec.MessageID,
		SenderID:       rec.SenderID,
		SenderName:     rec.SenderName,
	}

	err := d.sender.Send(ctx, rec.Token, payload)
	switch {
	case err == nil:
		observability.NotificationsDispatched.WithLabelValues("success").Inc()
		d.dropRetry(ctx, rec.ID)
	case errors.Is(err, ErrInvalidToken):
		observability.NotificationsDispatched.WithLabelValues("pruned").Inc()
		if pruneErr := d.userRepo.RemoveDeviceToken(ctx, rec.UserID, rec.Token); pruneErr != nil {
			d.log.Warn("invalid token prune failed", "user_id", rec.UserID, "error", pruneErr)
		}
		d.dropRetry(ctx, rec.ID)
	case rec.Attempt >= MaxRetryAttempts:
		observability.NotificationsDispatched.WithLabelValues("abandoned").Inc()
		d.log.Warn("notification abandoned after max attempts",
			"message_id", rec.MessageID, "user_id", rec.UserID)
		d.dropRetry(ctx, rec.ID)
	default:
		observability.NotificationsDispatched.WithLabelValues("failure").Inc()
		rec.Attempt++
		rec.NextAttemptAt = time.Now().UTC().Add(RetryDelays[rec.Attempt-1])
		d.scheduleRetry(ctx, rec)
	}
}

func (d *Dispatcher) dropRetry(ctx context.Context, id string) {
	if err := d.store.Delete(ctx, repository.NotificationRetriesCollection, id); err != nil {
		d.log.Warn("retry record delete failed", "retry_id", id, "error", err)
	}
}
