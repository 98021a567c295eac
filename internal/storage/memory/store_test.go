package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/moplabs/mopd/internal/domain"
	"github.com/moplabs/mopd/internal/storage"
)

func TestStoreSaveAndGetSession(t *testing.T) {
	store := New()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sess := &domain.Session{
		ID:      "sess_m1",
		Problem: "What is the capital of France?",
		StageResults: []domain.StageResult{
			{Agent: "analysis", Stage: 1, Response: "Break it down.", CreatedAt: created},
		},
		Status:    domain.StatusCompleted,
		Decision:  domain.DecisionNormal,
		CreatedAt: created,
	}
	if err := store.SaveSession(context.Background(), sess); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := store.GetSession(context.Background(), "sess_m1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.ID != "sess_m1" || got.Decision != domain.DecisionNormal {
		t.Errorf("GetSession() = %+v, want saved session", got)
	}
}

func TestStoreGetSessionNotFound(t *testing.T) {
	store := New()

	_, err := store.GetSession(context.Background(), "sess_missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetSession() error = %v, want storage.ErrNotFound", err)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := New()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sess := &domain.Session{
		ID:        "sess_m2",
		Problem:   "What is the capital of France?",
		Status:    domain.StatusCompleted,
		Decision:  domain.DecisionNormal,
		CreatedAt: created,
	}
	if err := store.SaveSession(context.Background(), sess); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	// Mutating the original after save must not affect the stored record.
	sess.Status = domain.StatusFailed

	got, err := store.GetSession(context.Background(), "sess_m2")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, store did not copy on save", got.Status)
	}

	// Mutating the returned value must not affect the stored record either.
	got.Status = domain.StatusFailed
	again, err := store.GetSession(context.Background(), "sess_m2")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if again.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, store did not copy on get", again.Status)
	}
}

func TestStoreListSessionsNewestFirst(t *testing.T) {
	store := New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		sess := &domain.Session{
			ID:        fmt.Sprintf("sess_m_list_%d", i),
			Problem:   "problem",
			Status:    domain.StatusCompleted,
			Decision:  domain.DecisionNormal,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveSession(context.Background(), sess); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}

	got, err := store.ListSessions(context.Background(), storage.ListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("session count = %d, want 2", len(got))
	}
	if got[0].ID != "sess_m_list_3" || got[1].ID != "sess_m_list_2" {
		t.Errorf("ListSessions() order = [%s %s], want [sess_m_list_3 sess_m_list_2]", got[0].ID, got[1].ID)
	}
}

func TestStoreSaveSessionIdempotent(t *testing.T) {
	store := New()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sess := &domain.Session{
		ID:        "sess_m3",
		Problem:   "problem",
		Status:    domain.StatusStopped,
		Decision:  domain.DecisionLimited,
		CreatedAt: created,
	}
	for i := 0; i < 3; i++ {
		if err := store.SaveSession(context.Background(), sess); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}

	all, err := store.ListSessions(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("session count = %d after repeated saves, want 1", len(all))
	}
}
