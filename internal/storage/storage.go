// Package storage defines the persistence contract for finished pipeline
// sessions. Implementations live in the subpackages: sqldb for SQL databases,
// redis for Redis, memory for tests and single-process use.
package storage

import (
	"context"
	"errors"

	"github.com/moplabs/mopd/internal/domain"
)

// ErrNotFound is returned by GetSession when no record exists for the ID.
// Implementations wrap it so callers can errors.Is against it.
var ErrNotFound = errors.New("session not found")

// ListOptions pages through stored sessions, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// SessionStore persists session records and answers lookups.
//
// SaveSession must be idempotent: writing the same session twice leaves a
// single record whose fields match the last write. Stores never mutate the
// session they are given, so a repeated save of an unchanged session is a
// true no-op.
type SessionStore interface {
	SaveSession(ctx context.Context, sess *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessions(ctx context.Context, opts ListOptions) ([]*domain.Session, error)
	Close() error
}
