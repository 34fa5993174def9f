package models

import "time"

// User is a registered principal. PassHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PassHash     []byte    `json:"-"`
	ProfileReady bool      `json:"profileReady"`
	CreatedAt    time.Time `json:"-"`
}
