package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"chatzam/internal/auth"
	"chatzam/internal/blob"
	"chatzam/internal/models"
	"chatzam/internal/observability"
	"chatzam/internal/repository"

	"github.com/google/uuid"
)

// UserService manages user profiles. Profile edits trigger a summary
// fan-out so conversation lists never show stale names or avatars.
type UserService struct {
	userRepo repository.UserRepository
	sync     *ProfileSyncService
	blobs    blob.Store
	log      *observability.Logger
}

// NewUserService returns a new UserService.
func NewUserService(userRepo repository.UserRepository, sync *ProfileSyncService, blobs blob.Store, log *observability.Logger) *UserService {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &UserService{userRepo: userRepo, sync: sync, blobs: blobs, log: log}
}

// GetProfile returns a user's profile.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.Get(ctx, userID)
}

// UpdateProfile writes the profile and synchronizes its summary into every
// conversation the user belongs to. A sync failure does not undo the
// profile write; the outcome is returned alongside for the caller.
func (s *UserService) UpdateProfile(ctx context.Context, session auth.Session, displayName, avatarURL string) (SyncOutcome, error) {
	if session.UserID == "" {
		return SyncOutcome{}, models.NewUnauthorizedError("not signed in")
	}
	if strings.TrimSpace(displayName) == "" {
		return SyncOutcome{}, models.NewValidationError("display name cannot be empty")
	}

	user, err := s.userRepo.Get(ctx, session.UserID)
	if err != nil {
		return SyncOutcome{}, err
	}

	user.DisplayName = strings.TrimSpace(displayName)
	if avatarURL != "" {
		user.AvatarURL = avatarURL
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return SyncOutcome{}, err
	}

	return s.sync.SyncProfile(ctx, session.UserID), nil
}

// UploadAvatar stores the image and returns its URL. The caller follows up
// with UpdateProfile to make the new avatar visible.
func (s *UserService) UploadAvatar(ctx context.Context, session auth.Session, image io.Reader) (string, error) {
	if session.UserID == "" {
		return "", models.NewUnauthorizedError("not signed in")
	}
	if image == nil {
		return "", models.NewValidationError("image reader is nil")
	}

	path := fmt.Sprintf("avatars/%s_%s", session.UserID, uuid.NewString()[:8])
	url, err := s.blobs.Upload(ctx, image, path)
	if err != nil {
		return "", models.NewRemoteError("upload avatar", err)
	}
	return url, nil
}

// SearchUsers finds users whose display name starts with the query,
// case-insensitively.
func (s *UserService) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("search query cannot be empty")
	}
	return s.userRepo.Search(ctx, query)
}

// SetPresence records whether the user is online and stamps last_seen.
func (s *UserService) SetPresence(ctx context.Context, session auth.Session, online bool) error {
	if session.UserID == "" {
		return models.NewUnauthorizedError("not signed in")
	}
	user, err := s.userRepo.Get(ctx, session.UserID)
	if err != nil {
		return err
	}
	user.Online = online
	user.LastSeen = time.Now().UTC()
	return s.userRepo.Update(ctx, user)
}
