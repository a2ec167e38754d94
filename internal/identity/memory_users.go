package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecomkit/storefront/internal/sessionkit"
)

type memoryUser struct {
	user         sessionkit.User
	passwordHash string
	googleSub    string
}

// MemoryUserStore keeps users in process memory. Used for demo and local runs.
type MemoryUserStore struct {
	mutex    sync.Mutex
	byID     map[string]*memoryUser
	hashCost int
}

// NewMemoryUserStore constructs an empty in-memory store.
func NewMemoryUserStore() *MemoryUserStore {
	return NewMemoryUserStoreWithCost(bcrypt.DefaultCost)
}

// NewMemoryUserStoreWithCost constructs a store with an explicit bcrypt cost.
func NewMemoryUserStoreWithCost(hashCost int) *MemoryUserStore {
	return &MemoryUserStore{
		byID:     make(map[string]*memoryUser),
		hashCost: hashCost,
	}
}

// Create registers a new user with a bcrypt password hash.
func (store *MemoryUserStore) Create(ctx context.Context, name string, email string, password string) (sessionkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	normalizedEmail := normalizeEmail(email)
	if store.findByEmailLocked(normalizedEmail) != nil {
		return sessionkit.User{}, fmt.Errorf("user_store.memory.create: %w", sessionkit.ErrUserAlreadyExists)
	}

	passwordHash, hashErr := bcrypt.GenerateFromPassword([]byte(password), store.hashCost)
	if hashErr != nil {
		return sessionkit.User{}, fmt.Errorf("user_store.memory.create: %w", hashErr)
	}
	entry := &memoryUser{
		user: sessionkit.User{
			ID:    uuid.NewString(),
			Name:  name,
			Email: normalizedEmail,
			Role:  defaultRole,
		},
		passwordHash: string(passwordHash),
	}
	store.byID[entry.user.ID] = entry
	return entry.user, nil
}

// Authenticate resolves a user by email and verifies the password.
func (store *MemoryUserStore) Authenticate(ctx context.Context, email string, password string) (sessionkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	entry := store.findByEmailLocked(normalizeEmail(email))
	if entry == nil || entry.passwordHash == "" {
		return sessionkit.User{}, fmt.Errorf("user_store.memory.authenticate: %w", sessionkit.ErrInvalidCredentials)
	}
	if compareErr := bcrypt.CompareHashAndPassword([]byte(entry.passwordHash), []byte(password)); compareErr != nil {
		return sessionkit.User{}, fmt.Errorf("user_store.memory.authenticate: %w", sessionkit.ErrInvalidCredentials)
	}
	return entry.user, nil
}

// GetProfile returns the user behind an application user id.
func (store *MemoryUserStore) GetProfile(ctx context.Context, userID string) (sessionkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	entry, found := store.byID[userID]
	if !found {
		return sessionkit.User{}, fmt.Errorf("user_store.memory.profile: %w", sessionkit.ErrUserNotFound)
	}
	return entry.user, nil
}

// UpsertGoogleUser links a Google identity to an application user, creating one
// on first sign-in.
func (store *MemoryUserStore) UpsertGoogleUser(ctx context.Context, googleSub string, email string, displayName string) (sessionkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	for _, entry := range store.byID {
		if entry.googleSub == googleSub {
			return entry.user, nil
		}
	}

	normalizedEmail := normalizeEmail(email)
	if entry := store.findByEmailLocked(normalizedEmail); entry != nil {
		entry.googleSub = googleSub
		return entry.user, nil
	}

	entry := &memoryUser{
		user: sessionkit.User{
			ID:    uuid.NewString(),
			Name:  displayName,
			Email: normalizedEmail,
			Role:  defaultRole,
		},
		googleSub: googleSub,
	}
	store.byID[entry.user.ID] = entry
	return entry.user, nil
}

func (store *MemoryUserStore) findByEmailLocked(normalizedEmail string) *memoryUser {
	for _, entry := range store.byID {
		if entry.user.Email == normalizedEmail {
			return entry
		}
	}
	return nil
}
