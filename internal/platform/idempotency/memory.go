package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	fingerprint string
	done        bool
	response    Response
	expiresAt   time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// MemoryStore keeps claims in process. It backs single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Reserve claims key for fingerprint unless a live entry already holds it.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.expired(now) {
		s.entries[key] = memoryEntry{fingerprint: fingerprint, expiresAt: now.Add(normaliseTTL(ttl))}
		return Claim{State: StateAcquired}, nil
	}
	if entry.fingerprint != fingerprint {
		return Claim{}, ErrFingerprintMismatch
	}
	if !entry.done {
		return Claim{State: StateInFlight}, nil
	}
	return Claim{State: StateReplay, Response: cloneResponse(entry.response)}, nil
}

// Complete stores the response under a claimed key and restarts its retention window.
func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && !entry.expired(now) && entry.fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	s.entries[key] = memoryEntry{
		fingerprint: fingerprint,
		done:        true,
		response:    cloneResponse(resp),
		expiresAt:   now.Add(normaliseTTL(ttl)),
	}
	return nil
}

// Release drops the claim so a retry runs the handler again.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// CleanupExpired removes up to limit expired entries. A non-positive limit removes all of them.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if limit > 0 && removed >= limit {
			break
		}
		if entry.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live and expired entries still held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
