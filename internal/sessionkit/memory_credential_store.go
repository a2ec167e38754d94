package sessionkit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryCredentialStore is an in-memory CredentialStore for tests and
// single-process dev runs. Entries expire lazily against the injected clock.
type MemoryCredentialStore struct {
	mutex   sync.Mutex
	entries map[string]memoryCredential
	clock   Clock
}

type memoryCredential struct {
	refreshToken string
	expiresAt    time.Time
}

// NewMemoryCredentialStore constructs an empty store on the system clock.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return NewMemoryCredentialStoreWithClock(systemClock{})
}

// NewMemoryCredentialStoreWithClock constructs a store on the supplied clock.
func NewMemoryCredentialStoreWithClock(clock Clock) *MemoryCredentialStore {
	if clock == nil {
		clock = systemClock{}
	}
	return &MemoryCredentialStore{
		entries: make(map[string]memoryCredential),
		clock:   clock,
	}
}

// Put stores the refresh token for the identity, replacing any prior value.
func (store *MemoryCredentialStore) Put(ctx context.Context, identity string, refreshToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("credential_store.memory.put: ttl must be greater than zero")
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.purgeExpiredLocked()
	store.entries[CredentialKey(identity)] = memoryCredential{
		refreshToken: refreshToken,
		expiresAt:    store.clock.Now().Add(ttl),
	}
	return nil
}

// Get returns the stored refresh token, or ErrCredentialNotFound when the
// identity has no live entry.
func (store *MemoryCredentialStore) Get(ctx context.Context, identity string) (string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entry, ok := store.entries[CredentialKey(identity)]
	if !ok {
		return "", fmt.Errorf("credential_store.memory.get: %w", ErrCredentialNotFound)
	}
	if !store.clock.Now().Before(entry.expiresAt) {
		delete(store.entries, CredentialKey(identity))
		return "", fmt.Errorf("credential_store.memory.get: %w", ErrCredentialNotFound)
	}
	return entry.refreshToken, nil
}

// Delete removes the stored value; absence is not an error.
func (store *MemoryCredentialStore) Delete(ctx context.Context, identity string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.entries, CredentialKey(identity))
	return nil
}

func (store *MemoryCredentialStore) purgeExpiredLocked() {
	if len(store.entries) == 0 {
		return
	}
	now := store.clock.Now()
	for key, entry := range store.entries {
		if !now.Before(entry.expiresAt) {
			delete(store.entries, key)
		}
	}
}
