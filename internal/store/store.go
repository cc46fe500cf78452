// Package store persists each owner's last-used annotation settings.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/markview/internal/session"
	"github.com/redis/go-redis/v9"
)

// record is the stored form of one owner's settings.
type record struct {
	Settings  session.Settings `json:"settings"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// RedisStore keeps settings under "markview:settings:<owner>" with a TTL
// refreshed on every save.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "markview:settings:", ttl: ttl}
}

func (s *RedisStore) key(owner string) string {
	return s.prefix + owner
}

// Load returns the owner's settings; ok is false when none are stored.
func (s *RedisStore) Load(ctx context.Context, owner string) (session.Settings, bool, error) {
	raw, err := s.client.Get(ctx, s.key(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Settings{}, false, nil
	}
	if err != nil {
		return session.Settings{}, false, fmt.Errorf("load settings: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return session.Settings{}, false, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := rec.Settings.Validate(); err != nil {
		return session.Settings{}, false, fmt.Errorf("stored settings: %w", err)
	}
	return rec.Settings, true, nil
}

func (s *RedisStore) Save(ctx context.Context, owner string, st session.Settings) error {
	data, err := json.Marshal(record{Settings: st, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.client.Set(ctx, s.key(owner), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Delete forgets the owner's settings.
func (s *RedisStore) Delete(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, s.key(owner)).Err(); err != nil {
		return fmt.Errorf("delete settings: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is the in-process fallback used when no Redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]record
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, records: make(map[string]record)}
}

func (m *MemoryStore) Load(_ context.Context, owner string) (session.Settings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[owner]
	if !ok {
		return session.Settings{}, false, nil
	}
	if m.ttl > 0 && time.Since(rec.UpdatedAt) > m.ttl {
		delete(m.records, owner)
		return session.Settings{}, false, nil
	}
	return rec.Settings, true, nil
}

func (m *MemoryStore) Save(_ context.Context, owner string, st session.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[owner] = record{Settings: st, UpdatedAt: time.Now()}
	return nil
}

var (
	_ session.SettingsStore = (*RedisStore)(nil)
	_ session.SettingsStore = (*MemoryStore)(nil)
)
