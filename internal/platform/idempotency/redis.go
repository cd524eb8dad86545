package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "commerce:idem:"

// RedisOption customises the RedisStore behaviour.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the prefix prepended to every idempotency key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(store *RedisStore) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" {
			store.prefix = prefix
		}
	}
}

// RedisStore implements Store on top of Redis. Expiry is delegated to key TTLs.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore constructs a Redis-backed idempotency store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	store := &RedisStore{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Reserve claims the key with SETNX and inspects the stored entry when the key is taken.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	ttl = normaliseTTL(ttl)
	id := s.prefix + key
	payload, err := json.Marshal(redisEntry{Fingerprint: fingerprint, ReservedAt: now.UTC()})
	if err != nil {
		return Claim{}, fmt.Errorf("idempotency: encode entry: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, id, payload, ttl).Result()
		if err != nil {
			return Claim{}, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if ok {
			return Claim{State: StateAcquired}, nil
		}

		entry, found, err := s.load(ctx, id)
		if err != nil {
			return Claim{}, err
		}
		if !found {
			continue
		}
		if entry.Fingerprint != fingerprint {
			return Claim{}, ErrFingerprintMismatch
		}
		if entry.Status == 0 {
			return Claim{State: StateInFlight}, nil
		}
		return Claim{State: StateReplay, Response: Response{
			Status: entry.Status,
			Header: http.Header(entry.Header),
			Body:   entry.Body,
		}}, nil
	}
	return Claim{}, fmt.Errorf("idempotency: reserve %s: key churned during claim", key)
}

// Complete overwrites the claim with the captured response and restarts the key TTL.
func (s *RedisStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	id := s.prefix + key
	current, found, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if found && current.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}

	stored := cloneResponse(resp)
	entry := redisEntry{
		Fingerprint: fingerprint,
		ReservedAt:  current.ReservedAt,
		CompletedAt: now.UTC(),
		Status:      stored.Status,
		Header:      map[string][]string(stored.Header),
		Body:        stored.Body,
	}
	if entry.ReservedAt.IsZero() {
		entry.ReservedAt = entry.CompletedAt
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("idempotency: encode entry: %w", err)
	}
	if err := s.client.Set(ctx, id, payload, normaliseTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("idempotency: complete: %w", err)
	}
	return nil
}

// Release deletes the claim so a retry runs the handler again.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

// CleanupExpired is a no-op; key TTLs expire entries server side.
func (s *RedisStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

// Ping reports whether the Redis server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) load(ctx context.Context, id string) (redisEntry, bool, error) {
	raw, err := s.client.Get(ctx, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return redisEntry{}, false, nil
	}
	if err != nil {
		return redisEntry{}, false, fmt.Errorf("idempotency: load: %w", err)
	}
	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return redisEntry{}, false, fmt.Errorf("idempotency: decode entry: %w", err)
	}
	return entry, true, nil
}

// redisEntry is the JSON value stored per key. A zero Status marks a claim still in flight.
type redisEntry struct {
	Fingerprint string              `json:"fp"`
	ReservedAt  time.Time           `json:"reserved_at"`
	CompletedAt time.Time           `json:"completed_at,omitempty"`
	Status      int                 `json:"status,omitempty"`
	Header      map[string][]string `json:"header,omitempty"`
	Body        []byte              `json:"body,omitempty"`
}
