package stores

import (
	"context"
	"sync"
)

/*
PreferenceStore persists each user's agent endpoint override. The empty
state is meaningful: a user without an override talks to the default
endpoint, so lookups distinguish "no override" from errors. Implementations
must be safe for concurrent use.
*/
type PreferenceStore interface {
	Override(ctx context.Context, userID string) (serverURL string, ok bool, err error)
	SetOverride(ctx context.Context, userID string, serverURL string) error
	ClearOverride(ctx context.Context, userID string) error
	Close() error
}

/*
MemoryPrefs keeps overrides in process memory, which is sufficient for
tests and for running without a storage path configured.
*/
type MemoryPrefs struct {
	mu        sync.RWMutex
	overrides map[string]string
}

func NewMemoryPrefs() *MemoryPrefs {
	return &MemoryPrefs{
		overrides: make(map[string]string),
	}
}

func (prefs *MemoryPrefs) Override(ctx context.Context, userID string) (string, bool, error) {
	prefs.mu.RLock()
	defer prefs.mu.RUnlock()

	url, ok := prefs.overrides[userID]

	return url, ok, nil
}

func (prefs *MemoryPrefs) SetOverride(ctx context.Context, userID string, serverURL string) error {
	prefs.mu.Lock()
	defer prefs.mu.Unlock()

	prefs.overrides[userID] = serverURL

	return nil
}

func (prefs *MemoryPrefs) ClearOverride(ctx context.Context, userID string) error {
	prefs.mu.Lock()
	defer prefs.mu.Unlock()

	delete(prefs.overrides, userID)

	return nil
}

func (prefs *MemoryPrefs) Close() error {
	return nil
}

var _ PreferenceStore = (*MemoryPrefs)(nil)
