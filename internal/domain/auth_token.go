package domain

import "errors"

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrInvalidAuthToken is returned when a token is malformed, its signature is invalid
	// or it has expired.
	ErrInvalidAuthToken = errors.New("invalid auth token")
)

// AuthToken represents a bearer credential binding a user ID to a validity
// period. There is no revocation: a token stays valid until ExpiresAt even
// if the account changes.
type AuthToken struct {
	UserID    string `json:"sub"` // ID of the authenticated user
	IssuedAt  int64  `json:"iat"` // Unix timestamp when the token was created
	ExpiresAt int64  `json:"exp"` // Unix timestamp when the token expires
}

// AuthResponse is returned by register and login: the bearer token plus the
// owner-facing profile projection.
type AuthResponse struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}
