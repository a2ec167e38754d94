package sessionkit

import (
	"context"
	"errors"
)

// User is the profile shape the session routes return. The identity store is
// the source of truth; this core only references user IDs.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Identity store failures the routes branch on.
var (
	// ErrUserAlreadyExists indicates a signup with an email already on record.
	ErrUserAlreadyExists = errors.New("user_store.already_exists")
	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("user_store.invalid_credentials")
	// ErrUserNotFound indicates a profile lookup for a missing user.
	ErrUserNotFound = errors.New("user_store.not_found")
)

// UserStore persists and authenticates application users. Password handling
// lives entirely behind this interface; the session core never sees a hash.
type UserStore interface {
	Create(ctx context.Context, name string, email string, password string) (User, error)
	Authenticate(ctx context.Context, email string, password string) (User, error)
	GetProfile(ctx context.Context, userID string) (User, error)
	UpsertGoogleUser(ctx context.Context, googleSub string, email string, displayName string) (User, error)
}
