// Package redis implements the session store on Redis. Sessions are stored
// as JSON values with a sorted-set index keyed by creation time for
// newest-first listing.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moplabs/mopd/internal/domain"
	"github.com/moplabs/mopd/internal/storage"
)

const (
	sessionKeyPrefix = "mopd:session:"
	sessionIndexKey  = "mopd:sessions:by_created"

	defaultListLimit = 100
)

// Store is a Redis implementation of storage.SessionStore.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

var _ storage.SessionStore = (*Store)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// TTL expires session values after the given duration. Zero keeps them
	// forever. The listing index is not expired; lookups of expired members
	// are skipped.
	TTL time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client, ttl: opts.TTL}, nil
}

// NewWithClient wraps an existing client. Tests use this with miniredis.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// SaveSession writes the session value and index entry atomically. Saving
// the same ID again overwrites the value and re-scores the index member, so
// retries do not duplicate entries.
func (s *Store) SaveSession(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sess.ID, data, s.ttl)
	pipe.ZAdd(ctx, sessionIndexKey, redis.Z{
		Score:  float64(sess.CreatedAt.UnixNano()),
		Member: sess.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession loads a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// ListSessions returns sessions newest first via the index.
func (s *Store) ListSessions(ctx context.Context, opts storage.ListOptions) ([]*domain.Session, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	start := int64(opts.Offset)
	stop := start + int64(limit) - 1
	ids, err := s.client.ZRevRange(ctx, sessionIndexKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]*domain.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.GetSession(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			// Value expired, index member outlived it.
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Ping verifies connectivity, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
