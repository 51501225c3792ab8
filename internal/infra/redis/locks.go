package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore implements the dedup gate's shared store on Redis. SET NX EX
// gives the atomic set-if-absent-with-TTL the gate's correctness depends on.
type LockStore struct {
	rdb *redis.Client
}

// NewLockStore creates a lock store on the shared client.
func NewLockStore(client *Client) *LockStore {
	return &LockStore{rdb: client.rdb}
}

func lockKey(key string) string {
	return fmt.Sprintf("dedup:%s", key)
}

// SetIfAbsent atomically claims the key with a bounded TTL. A zero or
// negative TTL is rejected: an unexpiring lock could stall the key forever
// if its owner crashes.
func (s *LockStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("lock ttl must be positive, got %v", ttl)
	}
	ok, err := s.rdb.SetNX(ctx, lockKey(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// Get reads the current lock value.
func (s *LockStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, lockKey(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get failed: %w", err)
	}
	return val, true, nil
}

// Update replaces the lock value, preserving its remaining TTL.
func (s *LockStore) Update(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, lockKey(key), value, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("set keepttl failed: %w", err)
	}
	return nil
}

// Delete releases the lock.
func (s *LockStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, lockKey(key)).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}
