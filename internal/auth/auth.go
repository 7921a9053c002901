// Package auth provides email/password authentication over the document
// store. It issues explicit Session values that callers thread into every
// service entry point; there is no ambient current-user accessor.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"chatzam/internal/models"
	"chatzam/internal/repository"
	"chatzam/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 72 * time.Hour

// Session identifies the authenticated user for a sequence of operations.
type Session struct {
	UserID string
	Token  string
}

type credentialRecord struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

// Manager implements sign-up and sign-in against the credentials
// collection, with bcrypt password hashes and HS256 session tokens.
type Manager struct {
	store  store.Store
	users  repository.UserRepository
	secret []byte
}

// NewManager returns an auth manager backed by the given store.
func NewManager(s store.Store, users repository.UserRepository, jwtSecret string) *Manager {
	return &Manager{store: s, users: users, secret: []byte(jwtSecret)}
}

// SignUp registers a new account and its user profile, returning a live session.
func (m *Manager) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, models.NewValidationError("a valid email is required")
	}
	if len(password) < 8 {
		return Session{}, models.NewValidationError("password must be at least 8 characters")
	}
	if strings.TrimSpace(displayName) == "" {
		return Session{}, models.NewValidationError("display name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, models.NewRemoteError("hash password", err)
	}

	userID := uuid.NewString()
	record := credentialRecord{UserID: userID, Email: email, PasswordHash: string(hash)}
	created, err := m.store.Create(ctx, repository.CredentialsCollection, email, encodeCredential(record))
	if err != nil {
		return Session{}, models.NewRemoteError("sign up", err)
	}
	if !created {
		return Session{}, models.NewValidationError("email already registered")
	}

	user := &models.User{ID: userID, Email: email, DisplayName: strings.TrimSpace(displayName)}
	if err := m.users.Create(ctx, user); err != nil {
		return Session{}, err
	}

	return m.issueSession(userID)
}

// SignIn verifies the password and returns a live session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)

	doc, err := m.store.Get(ctx, repository.CredentialsCollection, email)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, models.NewUnauthorizedError("invalid email or password")
	}
	if err != nil {
		return Session{}, models.NewRemoteError("sign in", err)
	}

	record, err := decodeCredential(doc)
	if err != nil {
		return Session{}, models.NewRemoteError("sign in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); err != nil {
		return Session{}, models.NewUnauthorizedError("invalid email or password")
	}

	return m.issueSession(record.UserID)
}

// VerifySession validates a session token and reconstructs the session.
func (m *Manager) VerifySession(token string) (Session, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Session{}, models.NewUnauthorizedError("invalid or expired session token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, models.NewUnauthorizedError("invalid session claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Session{}, models.NewUnauthorizedError("invalid session claims")
	}
	return Session{UserID: sub, Token: token}, nil
}

func (m *Manager) issueSession(userID string) (Session, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(sessionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return Session{}, models.NewRemoteError("issue session token", err)
	}
	return Session{UserID: userID, Token: signed}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func encodeCredential(record credentialRecord) store.Document {
	return store.Document{
		"user_id":       record.UserID,
		"email":         record.Email,
		"password_hash": record.PasswordHash,
	}
}

func decodeCredential(doc store.Document) (credentialRecord, error) {
	record := credentialRecord{
		UserID:       asString(doc["user_id"]),
		Email:        asString(doc["email"]),
		PasswordHash: asString(doc["password_hash"]),
	}
	if record.UserID == "" || record.PasswordHash == "" {
		return record, errors.New("malformed credential record")
	}
	return record, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
