// Package kvstore provides a small injected key-value store with TTL for
// short-lived, high-churn keys: duplicate-payment marks and per-partner
// location-update counters. The interface keeps the in-process implementation
// swappable for a shared external store without touching callers.
package kvstore

import (
	"sync"
	"time"
)

// Store is the contract consumed by the order service.
type Store interface {
	// Increment bumps a counter under key, creating it with the given TTL,
	// and returns the new value. The TTL is fixed at first write; the counter
	// vanishes when it expires.
	Increment(key string, ttl time.Duration) int64

	// SetNX marks key if it is absent and returns true; returns false when
	// the key already exists and has not expired.
	SetNX(key string, ttl time.Duration) bool

	// Delete removes key, if present.
	Delete(key string)
}

type entry struct {
	value     int64
	expiresAt time.Time
}

// MemoryStore is the in-process implementation used in production by default
// and in every test.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (s *MemoryStore) Increment(key string, ttl time.Duration) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = entry{expiresAt: now.Add(ttl)}
	}
	e.value++
	s.entries[key] = e
	return e.value
}

func (s *MemoryStore) SetNX(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return false
	}
	s.entries[key] = entry{value: 1, expiresAt: now.Add(ttl)}
	return true
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Purge drops expired entries. Callers may run it periodically; correctness
// does not depend on it since reads check expiry themselves.
func (s *MemoryStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}
