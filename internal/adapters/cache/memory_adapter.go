package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
)

// MemoryAdapter is an in-process CacheProvider used when Redis is unavailable
type MemoryAdapter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	counter   int64
	expiresAt time.Time
}

// NewMemoryAdapter creates an empty in-process cache
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{entries: make(map[string]memoryEntry), now: time.Now}
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)

func (a *MemoryAdapter) live(key string) (memoryEntry, bool) {
	entry, ok := a.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !a.now().Before(entry.expiresAt) {
		delete(a.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (a *MemoryAdapter) expiry(expirationSeconds int) time.Time {
	if expirationSeconds <= 0 {
		return time.Time{}
	}
	return a.now().Add(time.Duration(expirationSeconds) * time.Second)
}

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.live(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", providers.ErrCacheMiss, key)
	}
	if entry.value == nil {
		// Counters read back as decimal text, like Redis INCR keys.
		return []byte(strconv.FormatInt(entry.counter, 10)), nil
	}
	return entry.value, nil
}

// Set stores a value in cache with expiration
func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries[key] = memoryEntry{value: value, expiresAt: a.expiry(expirationSeconds)}
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.entries, key)
	return nil
}

// Exists checks if a key exists in cache
func (a *MemoryAdapter) Exists(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.live(key)
	return ok, nil
}

// Increment bumps a counter and sets its TTL when the counter is new
func (a *MemoryAdapter) Increment(ctx context.Context, key string, expirationSeconds int) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.live(key)
	if !ok {
		entry = memoryEntry{expiresAt: a.expiry(expirationSeconds)}
	}
	entry.counter++
	a.entries[key] = entry
	return entry.counter, nil
}
