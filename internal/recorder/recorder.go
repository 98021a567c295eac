// Package recorder owns terminal session persistence. The pipeline hands it
// finished sessions; handlers go through it for lookups so every read sees
// the same record the write produced.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/moplabs/mopd/internal/domain"
	"github.com/moplabs/mopd/internal/storage"
)

const (
	defaultRetries = 2
	defaultBackoff = 250 * time.Millisecond
	defaultTimeout = 10 * time.Second
)

// Recorder persists terminal sessions with bounded retries and serves
// lookups against the backing store.
type Recorder struct {
	store   storage.SessionStore
	logger  *slog.Logger
	retries int
	backoff time.Duration
	timeout time.Duration
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithRetries sets how many times a failed save is retried.
func WithRetries(n int) Option {
	return func(r *Recorder) { r.retries = n }
}

// WithBackoff sets the base delay between retries. The delay grows linearly
// with the attempt number.
func WithBackoff(d time.Duration) Option {
	return func(r *Recorder) { r.backoff = d }
}

// WithTimeout bounds the total time spent persisting one session.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) { r.timeout = d }
}

// New creates a Recorder on top of the given store.
func New(store storage.SessionStore, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		logger:  logger.With("component", "recorder"),
		retries: defaultRetries,
		backoff: defaultBackoff,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists a terminal session. It runs on its own context so a
// departed observer cannot cancel the write, and retries transient store
// errors before giving up. Saves are idempotent at the store layer, so a
// retry after a partial failure cannot duplicate the record.
func (r *Recorder) Record(sess *domain.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= r.retries+1; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return domain.ErrPersistence(fmt.Errorf("session %s: %w (last error: %v)", sess.ID, ctx.Err(), lastErr))
			case <-time.After(time.Duration(attempt-1) * r.backoff):
			}
		}

		if err := r.store.SaveSession(ctx, sess); err != nil {
			lastErr = err
			r.logger.Warn("session save failed",
				"session_id", sess.ID,
				"attempt", attempt,
				"error", err)
			continue
		}

		if attempt > 1 {
			r.logger.Info("session saved after retry", "session_id", sess.ID, "attempt", attempt)
		}
		return nil
	}

	return domain.ErrPersistence(fmt.Errorf("session %s after %d attempts: %w", sess.ID, r.retries+1, lastErr))
}

// Get returns the stored session. Repeated lookups of the same ID return
// the record verbatim; a missing ID yields domain not-found.
func (r *Recorder) Get(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := r.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// List returns stored sessions newest first.
func (r *Recorder) List(ctx context.Context, opts storage.ListOptions) ([]*domain.Session, error) {
	return r.store.ListSessions(ctx, opts)
}
