// Package model defines domain entities for the application.
package model

import "time"

// User is an account that can authenticate and own credits.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	CreatedAt    time.Time `json:"created_at"`
}

// AuthContext holds the authenticated principal of a request.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	UserID  int64
	TokenID string
}
