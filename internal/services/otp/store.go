package otp

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is the stored state of an issued code.
type Entry struct {
	Hash     string
	Attempts int
}

// CodeStore keeps at most one active code per mobile.
type CodeStore interface {
	Save(ctx context.Context, mobile, hash string, ttl time.Duration) error
	Get(ctx context.Context, mobile string) (Entry, error)
	IncrAttempts(ctx context.Context, mobile string) (int, error)
	Delete(ctx context.Context, mobile string) error
}

// ---------------------------------------------
// Redis
// ---------------------------------------------

const codeNamespace = "otp:code:"

type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, mobile, hash string, ttl time.Duration) error {
	key := codeNamespace + mobile
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "hash", hash, "attempts", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, mobile string) (Entry, error) {
	fields, err := s.client.HGetAll(ctx, codeNamespace+mobile).Result()
	if err != nil {
		return Entry{}, err
	}
	if len(fields) == 0 || fields["hash"] == "" {
		return Entry{}, ErrNoCode
	}

	attempts, _ := strconv.Atoi(fields["attempts"])
	return Entry{Hash: fields["hash"], Attempts: attempts}, nil
}

func (s *RedisStore) IncrAttempts(ctx context.Context, mobile string) (int, error) {
	key := codeNamespace + mobile
	n, err := s.client.HIncrBy(ctx, key, "attempts", 1).Result()
	if err != nil {
		return 0, err
	}
	// HIncrBy on an expired key recreates it without a TTL.
	if n == 1 {
		if ttl, err := s.client.TTL(ctx, key).Result(); err == nil && ttl < 0 {
			_ = s.client.Del(ctx, key).Err()
			return 0, ErrNoCode
		}
	}
	return int(n), nil
}

func (s *RedisStore) Delete(ctx context.Context, mobile string) error {
	err := s.client.Del(ctx, codeNamespace+mobile).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// ---------------------------------------------
// Memory
// ---------------------------------------------

type memEntry struct {
	Entry
	expiresAt time.Time
}

// MemoryStore is a process-local CodeStore for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, mobile, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[mobile] = memEntry{Entry: Entry{Hash: hash}, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) live(mobile string) (memEntry, bool) {
	e, ok := s.entries[mobile]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.After(s.now()) {
		delete(s.entries, mobile)
		return memEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Get(_ context.Context, mobile string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(mobile)
	if !ok {
		return Entry{}, ErrNoCode
	}
	return e.Entry, nil
}

func (s *MemoryStore) IncrAttempts(_ context.Context, mobile string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(mobile)
	if !ok {
		return 0, ErrNoCode
	}
	e.Attempts++
	s.entries[mobile] = e
	return e.Attempts, nil
}

func (s *MemoryStore) Delete(_ context.Context, mobile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, mobile)
	return nil
}
