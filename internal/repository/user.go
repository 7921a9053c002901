package repository

import (
	"context"
	"errors"
	"strings"

	"chatzam/internal/models"
	"chatzam/internal/store"
)

// UserRepository defines the interface for user profile data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	// Search matches users whose display name starts with the query,
	// case-insensitively.
	Search(ctx context.Context, query string) ([]models.User, error)
	// AddDeviceToken adds a push token with set-union semantics; adding an
	// already-registered token is a no-op on the resulting set.
	AddDeviceToken(ctx context.Context, userID, token string) error
	// RemoveDeviceToken removes a push token; removing an absent token is
	// a no-op.
	RemoveDeviceToken(ctx context.Context, userID, token string) error
	// Summaries fetches the denormalized projections for the given user
	// ids, keyed by user id. Unknown ids are skipped, not errors.
	Summaries(ctx context.Context, ids []string) (map[string]models.ProfileSummary, error)
}

// userRepository implements UserRepository.
type userRepository struct {
	store store.Store
}

// NewUserRepository creates a new user repository.
func NewUserRepository(s store.Store) UserRepository {
	return &userRepository{store: s}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	doc, err := encodeDocument(user)
	if err != nil {
		return models.NewRemoteError("create user", err)
	}
	created, err := r.store.Create(ctx, UsersCollection, user.ID, doc)
	if err != nil {
		return models.NewRemoteError("create user", err)
	}
	if !created {
		return models.NewValidationError("user already exists")
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.Get(ctx, UsersCollection, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.NewNotFoundError("user", id)
	}
	if err != nil {
		return nil, models.NewRemoteError("get user", err)
	}

	var user models.User
	if err := decodeDocument(doc, &user); err != nil {
		return nil, models.NewRemoteError("get user", err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	doc, err := encodeDocument(user)
	if err != nil {
		return models.NewRemoteError("update user", err)
	}
	if err := r.store.Set(ctx, UsersCollection, user.ID, doc); err != nil {
		return models.NewRemoteError("update user", err)
	}
	return nil
}

func (r *userRepository) Search(ctx context.Context, query string) ([]models.User, error) {
	docs, err := r.store.Find(ctx, store.Query{
		Collection: UsersCollection,
		OrderBy:    &store.Order{Field: "display_name"},
	})
	if err != nil {
		return nil, models.NewRemoteError("search users", err)
	}

	prefix := strings.ToLower(strings.TrimSpace(query))
	users := make([]models.User, 0)
	for _, doc := range docs {
		var user models.User
		if err := decodeDocument(doc, &user); err != nil {
			continue
		}
		if prefix == "" || strings.HasPrefix(strings.ToLower(user.DisplayName), prefix) {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *userRepository) AddDeviceToken(ctx context.Context, userID, token string) error {
	return r.updateTokens(ctx, userID, store.ArrayUnion{Values: []any{token}})
}

func (r *userRepository) RemoveDeviceToken(ctx context.Context, userID, token string) error {
	return r.updateTokens(ctx, userID, store.ArrayRemove{Values: []any{token}})
}

func (r *userRepository) updateTokens(ctx context.Context, userID string, op any) error {
	err := r.store.Update(ctx, UsersCollection, userID, map[string]any{"device_tokens": op})
	if errors.Is(err, store.ErrNotFound) {
		return models.NewNotFoundError("user", userID)
	}
	if err != nil {
		return models.NewRemoteError("update device tokens", err)
	}
	return nil
}

func (r *userRepository) Summaries(ctx context.Context, ids []string) (map[string]models.ProfileSummary, error) {
	summaries := make(map[string]models.ProfileSummary, len(ids))
	for _, id := range ids {
		user, err := r.Get(ctx, id)
		if models.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries[id] = user.Summary()
	}
	return summaries, nil
}
