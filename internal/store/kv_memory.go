package store

import (
	"context"
	"sync"
	"time"

	"github.com/GregMSThompson/insight-portal/internal/errs"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// memoryKV is the in-process fallback when Redis is not configured.
// Expired keys are dropped when read.
type memoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryKV() *memoryKV {
	return &memoryKV{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *memoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *memoryKV) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", errs.NewNotFoundError("key not found")
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return "", errs.NewNotFoundError("key not found")
	}
	return e.value, nil
}

func (s *memoryKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *memoryKV) Ping(_ context.Context) error { return nil }
