// Package idempotency lets clients retry a write with the same key and get
// the original result back instead of a second write.
//
// A claim is taken with SET NX as a pending record. The caller then either
// completes it with the id of what was written or releases it so a retry
// can run again.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long a completed record is kept.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNoRecord is returned by Store.Get when the key is absent.
	ErrNoRecord = errors.New("idempotency record not found")
	// ErrKeyReused means the key was first used with a different request.
	ErrKeyReused = errors.New("idempotency key reused with different request body")
	// ErrInFlight means the first request with this key has not finished.
	ErrInFlight = errors.New("request with this idempotency key is still in progress")
)

// Store is the key-value surface the guard needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Record is what is stored under a key.
type Record struct {
	Status      Status `json:"status"`
	RequestHash string `json:"request_hash"`
	ResultID    string `json:"result_id,omitempty"`
}

// Guard claims and completes idempotency keys.
type Guard struct {
	store Store
	ttl   time.Duration
}

// NewGuard returns a guard keeping records for ttl, or DefaultTTL when ttl
// is not positive.
func NewGuard(store Store, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{store: store, ttl: ttl}
}

// HashRequest returns a stable digest of a request message.
func HashRequest(msg any) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// Claim tries to take key for a request with the given hash.
//
// It returns (nil, nil) when the caller now owns the key and must call
// Complete or Release. When the key was already completed for the same
// request it returns that record. A different hash yields ErrKeyReused and
// an unfinished claim yields ErrInFlight.
func (g *Guard) Claim(ctx context.Context, key, requestHash string) (*Record, error) {
	pending, err := json.Marshal(Record{Status: StatusPending, RequestHash: requestHash})
	if err != nil {
		return nil, err
	}

	// A record can expire between SetNX and Get; one retry covers that.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := g.store.SetNX(ctx, key, string(pending), g.ttl)
		if err != nil {
			return nil, fmt.Errorf("claim idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}

		stored, err := g.store.Get(ctx, key)
		if errors.Is(err, ErrNoRecord) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check idempotency key: %w", err)
		}

		var rec Record
		if err := json.Unmarshal([]byte(stored), &rec); err != nil {
			return nil, fmt.Errorf("decode idempotency record: %w", err)
		}
		if rec.RequestHash != requestHash {
			return nil, ErrKeyReused
		}
		if rec.Status != StatusDone {
			return nil, ErrInFlight
		}
		return &rec, nil
	}
	return nil, ErrInFlight
}

// Complete marks key as done with the id of the written result.
func (g *Guard) Complete(ctx context.Context, key, requestHash, resultID string) error {
	done, err := json.Marshal(Record{Status: StatusDone, RequestHash: requestHash, ResultID: resultID})
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, key, string(done), g.ttl); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release drops a claim so the client can retry.
func (g *Guard) Release(ctx context.Context, key string) error {
	if err := g.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and single-node development.
// Expired entries are dropped lazily.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return e, false
	}
	return e, true
}

func (m *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", ErrNoRecord
	}
	return e.value, nil
}

func (m *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: m.expiry(ttl)}
	return nil
}

func (m *MemoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
