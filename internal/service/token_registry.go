package service

import (
	"context"
	"strings"

	"chatzam/internal/auth"
	"chatzam/internal/models"
	"chatzam/internal/observability"
	"chatzam/internal/repository"
)

// TokenRegistry tracks device push tokens on the user document. The token
// list is a set: registering the same token twice is a no-op at the store
// level, so registration is safe to repeat on every app start.
type TokenRegistry struct {
	userRepo repository.UserRepository
	sync     *ProfileSyncService
	log      *observability.Logger
}

// NewTokenRegistry returns a new TokenRegistry.
func NewTokenRegistry(userRepo repository.UserRepository, sync *ProfileSyncService, log *observability.Logger) *TokenRegistry {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &TokenRegistry{userRepo: userRepo, sync: sync, log: log}
}

// RegisterToken adds a device token to the user's set and refreshes the
// user's conversation summaries so peers can address the new device.
func (r *TokenRegistry) RegisterToken(ctx context.Context, session auth.Session, token string) error {
	if session.UserID == "" {
		return models.NewUnauthorizedError("not signed in")
	}
	if strings.TrimSpace(token) == "" {
		return models.NewValidationError("device token cannot be empty")
	}

	if err := r.userRepo.AddDeviceToken(ctx, session.UserID, token); err != nil {
		return err
	}

	if outcome := r.sync.SyncProfile(ctx, session.UserID); outcome.Status == SyncFailed {
		r.log.Warn("summary refresh after token registration failed",
			"user_id", session.UserID, "error", outcome.FirstErr)
	}
	return nil
}

// UnregisterToken removes a device token, typically on sign-out.
func (r *TokenRegistry) UnregisterToken(ctx context.Context, session auth.Session, token string) error {
	if session.UserID == "" {
		return models.NewUnauthorizedError("not signed in")
	}
	if strings.TrimSpace(token) == "" {
		return models.NewValidationError("device token cannot be empty")
	}
	return r.userRepo.RemoveDeviceToken(ctx, session.UserID, token)
}

// RotateToken replaces an expired token with a fresh one. The new token is
// added before the old one is removed, so a crash between the two writes
// leaves the user reachable on the new token plus a dead entry that push
// delivery will prune, never unreachable.
func (r *TokenRegistry) RotateToken(ctx context.Context, session auth.Session, oldToken, newToken string) error {
	if err := r.RegisterToken(ctx, session, newToken); err != nil {
		return err
	}
	if oldToken == "" || oldToken == newToken {
		return nil
	}
	return r.userRepo.RemoveDeviceToken(ctx, session.UserID, oldToken)
}
