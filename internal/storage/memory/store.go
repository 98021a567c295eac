// Package memory implements the session store as an in-process map, used by
// tests and deployments that do not need durability.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/moplabs/mopd/internal/domain"
	"github.com/moplabs/mopd/internal/storage"
)

// Store is an in-memory implementation of storage.SessionStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

var _ storage.SessionStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{sessions: make(map[string]*domain.Session)}
}

// SaveSession stores a copy of the session, replacing any previous record
// with the same ID.
func (s *Store) SaveSession(ctx context.Context, sess *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// GetSession returns a copy of the stored session.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	return sess.Clone(), nil
}

// ListSessions returns stored sessions newest first.
func (s *Store) ListSessions(ctx context.Context, opts storage.ListOptions) ([]*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := opts.Offset
	if start >= len(all) {
		return []*domain.Session{}, nil
	}
	end := len(all)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return all[start:end], nil
}

func (s *Store) Close() error { return nil }
