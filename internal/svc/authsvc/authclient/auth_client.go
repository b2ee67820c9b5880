package authclient

import "context"

// AuthClient defines the interface for validating bearer tokens.
type AuthClient interface {
	// Validate checks if the given token is valid.
	// Returns the user ID the token was issued for, whether the token is
	// valid, and any error encountered during validation.
	Validate(ctx context.Context, token string) (string, bool, error)
}
