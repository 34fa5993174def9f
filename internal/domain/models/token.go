package models

import "time"

// RefreshToken represents a refresh token stored in the database.
// Only the hash of the raw value is ever persisted.
type RefreshToken struct {
	ID             int64
	UserID         int64
	TokenHash      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	ReplacedByHash *string
}
