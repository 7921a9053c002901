package models

import "time"

// User is the canonical profile document, owned by the users collection.
type User struct {
	ID           string    `json:"user_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	LastSeen     time.Time `json:"last_seen,omitzero"`
	Online       bool      `json:"is_online"`
	DeviceTokens []string  `json:"device_tokens,omitempty"`
}

// ProfileSummary is the denormalized copy of a user's profile stored inside
// every conversation they participate in, so clients never join users
// against conversations at read time.
type ProfileSummary struct {
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	LastSeen     time.Time `json:"last_seen,omitzero"`
	Online       bool      `json:"is_online"`
	DeviceTokens []string  `json:"device_tokens,omitempty"`
}

// Summary returns the denormalized projection of the user.
func (u *User) Summary() ProfileSummary {
	return ProfileSummary{
		UserID:       u.ID,
		DisplayName:  u.DisplayName,
		AvatarURL:    u.AvatarURL,
		LastSeen:     u.LastSeen,
		Online:       u.Online,
		DeviceTokens: u.DeviceTokens,
	}
}
