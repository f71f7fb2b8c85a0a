package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

var (
	// ErrNotStored indicates no payload exists under the requested name
	ErrNotStored = errors.New("payload not stored")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid stored entry")
)

// Options configures a RedisStore.
type Options struct {
	// Namespace prefixes keys (default "flags")
	Namespace string

	// TTL expires stored payloads; zero keeps them forever
	TTL time.Duration
}

// DefaultOptions returns the default Redis store options.
func DefaultOptions() Options {
	return Options{
		Namespace: DefaultNamespace,
		TTL:       0,
	}
}

// RedisStore stores payloads in Redis.
type RedisStore struct {
	redis *redis.Client
	opts  Options
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client, opts Options) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	return &RedisStore{
		redis: redisClient,
		opts:  opts,
	}
}

func (s *RedisStore) key(name string) string {
	return Key{Namespace: s.opts.Namespace, Name: name}.String()
}

// Save stores payload under name, replacing any previous entry.
func (s *RedisStore) Save(ctx context.Context, payload []byte, name string) error {
	err := s.save(ctx, payload, name)
	recordSave(backendRedis, len(payload), err)
	return err
}

func (s *RedisStore) save(ctx context.Context, payload []byte, name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	data, err := json.Marshal(NewEntry(name, payload))
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(name), data, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load retrieves the entry stored under name.
// Returns ErrNotStored if the key doesn't exist or has expired.
func (s *RedisStore) Load(ctx context.Context, name string) (*Entry, error) {
	data, err := s.redis.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotStored
		}
		StoreErrors.WithLabelValues(backendRedis, "load").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		StoreErrors.WithLabelValues(backendRedis, "load").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if !entry.Valid() {
		StoreErrors.WithLabelValues(backendRedis, "load").Inc()
		return nil, fmt.Errorf("%w: size %d does not match %d bytes", ErrInvalidEntry, entry.Size, len(entry.Data))
	}

	return &entry, nil
}

// Delete removes the entry stored under name.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := s.redis.Del(ctx, s.key(name)).Err(); err != nil {
		StoreErrors.WithLabelValues(backendRedis, "delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Exists reports whether an entry is stored under name.
func (s *RedisStore) Exists(ctx context.Context, name string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(name)).Result()
	if err != nil {
		StoreErrors.WithLabelValues(backendRedis, "exists").Inc()
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime of name; -1 means no expiry.
func (s *RedisStore) TTL(ctx context.Context, name string) (time.Duration, error) {
	ttl, err := s.redis.TTL(ctx, s.key(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ttl: %w", err)
	}
	if ttl == -2 {
		return 0, ErrNotStored
	}
	return ttl, nil
}
