package domain

import (
	"errors"
	"slices"
)

var (
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering with an email that already has an account.
	ErrEmailTaken = errors.New("user already exists")
	// ErrUsernameTaken is returned when the username unique constraint is violated.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials is returned when the email/password combination is incorrect.
	// Unknown email and wrong password both map here so responses do not reveal which check failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")
	// ErrAlreadyFollowing is returned when the follow edge already exists.
	ErrAlreadyFollowing = errors.New("already following this user")
	// ErrNotFollowing is returned when removing a follow edge that does not exist.
	ErrNotFollowing = errors.New("not following this user")
)

// DefaultAvatarURL is the profile image used until a user sets their own.
const DefaultAvatarURL = "https://via.placeholder.com/150"

// User represents an account in the system, including its side of the
// social graph. Followers and Following hold user IDs and are kept mutually
// consistent by the follow/unfollow operations.
type User struct {
	ID           string   // Unique identifier, assigned by the store
	Username     string   // Unique handle
	Email        string   // Unique login email
	PasswordHash []byte   // bcrypt hash, never serialized
	FullName     string   // Display name
	Bio          string   // Free-text bio, may be empty
	AvatarURL    string   // Profile image reference
	Followers    []string // IDs of users following this user
	Following    []string // IDs of users this user follows
	CreatedAt    int64    // Unix timestamp of account creation
}

// IsFollowing reports whether the user follows the given user ID.
func (u *User) IsFollowing(userID string) bool {
	return slices.Contains(u.Following, userID)
}

// Profile is the projection of a User returned to the account owner.
// It carries the email but never the password hash.
type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"profilePic"`
	Bio       string `json:"bio"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
}

// PublicProfile is the projection of a User exposed to other users.
type PublicProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"profilePic"`
	Bio       string `json:"bio"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
}

// SuggestedUser is a row of the suggested-users listing. MutualFriends is
// the size of the intersection between the caller's following set and the
// candidate's follower set.
type SuggestedUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FullName      string `json:"fullName"`
	AvatarURL     string `json:"profilePic"`
	MutualFriends int    `json:"mutualFriends"`
}

// ProfileChanges carries a partial profile update. Empty fields are left
// unchanged.
type ProfileChanges struct {
	FullName  string `json:"fullName"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"profilePic"`
}

// Profile builds the owner-facing projection of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		Followers: len(u.Followers),
		Following: len(u.Following),
	}
}

// PublicProfile builds the projection of the user shown to other users.
func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		Followers: len(u.Followers),
		Following: len(u.Following),
	}
}
