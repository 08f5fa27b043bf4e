package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type entry struct {
	status    string
	attempts  int
	claimedAt time.Time
	lastError string
}

// MemoryStore is a process-local Store. Entries expire after ttl, after which a redelivery
// is processed again.
type MemoryStore struct {
	ClaimTimeout time.Duration

	mu    sync.Mutex
	cache *cache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ClaimTimeout: DefaultClaimTimeout, cache: cache.New(ttl, ttl/2)}
}

func (s *MemoryStore) Begin(_ context.Context, e Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cur, seen := entry{}, false
	if v, ok := s.cache.Get(e.EventID); ok {
		cur, seen = v.(entry), true
	}
	cur.attempts++

	switch {
	case seen && cur.status == statusDone:
		s.cache.SetDefault(e.EventID, cur)
		return false, nil
	case seen && cur.status == statusProcessing && now.Sub(cur.claimedAt) < s.ClaimTimeout:
		s.cache.SetDefault(e.EventID, cur)
		return false, ErrInProgress
	}

	cur.status = statusProcessing
	cur.claimedAt = now
	s.cache.SetDefault(e.EventID, cur)
	return true, nil
}

func (s *MemoryStore) Done(_ context.Context, eventID string) error {
	s.update(eventID, func(e *entry) {
		e.status = statusDone
		e.lastError = ""
	})
	return nil
}

func (s *MemoryStore) Failed(_ context.Context, eventID, errMsg string) error {
	s.update(eventID, func(e *entry) {
		e.status = statusFailed
		e.lastError = errMsg
	})
	return nil
}

// Attempts reports how many times Begin saw eventID.
func (s *MemoryStore) Attempts(eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(eventID); ok {
		return v.(entry).attempts
	}
	return 0
}

func (s *MemoryStore) update(eventID string, fn func(*entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur entry
	if v, ok := s.cache.Get(eventID); ok {
		cur = v.(entry)
	}
	fn(&cur)
	s.cache.SetDefault(eventID, cur)
}
