package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

func newTestStore() (*MemoryStorage, *time.Time) {
	store := NewMemoryStorage()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return store, &now
}

func TestDocumentRepo_StoreUpsertsByEvent(t *testing.T) {
	store, _ := newTestStore()
	repo := NewDocumentRepo(store)
	ctx := context.Background()

	id, err := repo.Store(ctx, &domain.Document{EventID: "evt-1", Status: domain.DocumentStatusPending})
	if err != nil || id == "" {
		t.Fatalf("Store failed: id=%q err=%v", id, err)
	}

	again, err := repo.Store(ctx, &domain.Document{
		EventID: "evt-1",
		Status:  domain.DocumentStatusCompleted,
		Result:  map[string]any{"nodes": map[string]any{}},
	})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if again != id {
		t.Errorf("upsert returned new id %q, want %q", again, id)
	}

	doc, err := repo.GetByEventID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("GetByEventID failed: %v", err)
	}
	if doc.Status != domain.DocumentStatusCompleted || doc.Result == nil {
		t.Errorf("document not updated: %+v", doc)
	}
	if !doc.UpdatedAt.After(doc.CreatedAt) {
		t.Errorf("updated_at should advance past created_at")
	}
}

func TestDocumentRepo_GetPending(t *testing.T) {
	store, _ := newTestStore()
	repo := NewDocumentRepo(store)
	ctx := context.Background()

	for _, ev := range []string{"a", "b", "c"} {
		if _, err := repo.Store(ctx, &domain.Document{EventID: ev, Status: domain.DocumentStatusPending}); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}
	bID, _ := repo.Store(ctx, &domain.Document{EventID: "b", Status: domain.DocumentStatusPending})
	if err := repo.MarkStatus(ctx, bID, domain.DocumentStatusCompleted, ""); err != nil {
		t.Fatalf("MarkStatus failed: %v", err)
	}

	pending, err := repo.GetPending(ctx, 1)
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].EventID != "a" {
		t.Errorf("pending = %+v, want oldest pending first", pending)
	}

	counts, _ := repo.CountByStatus(ctx)
	if counts[domain.DocumentStatusPending] != 2 || counts[domain.DocumentStatusCompleted] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDocumentRepo_TouchIfStatus(t *testing.T) {
	store, _ := newTestStore()
	repo := NewDocumentRepo(store)
	ctx := context.Background()

	id, _ := repo.Store(ctx, &domain.Document{EventID: "evt-1", Status: domain.DocumentStatusPending})
	before, _ := repo.Get(ctx, id)

	touched, err := repo.TouchIfStatus(ctx, id, domain.DocumentStatusPending)
	if err != nil || !touched {
		t.Fatalf("TouchIfStatus(pending) = %v, %v", touched, err)
	}
	after, _ := repo.Get(ctx, id)
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Errorf("updated_at not refreshed")
	}

	if err := repo.MarkStatus(ctx, id, domain.DocumentStatusCompleted, ""); err != nil {
		t.Fatalf("MarkStatus failed: %v", err)
	}
	touched, err = repo.TouchIfStatus(ctx, id, domain.DocumentStatusPending)
	if err != nil || touched {
		t.Errorf("TouchIfStatus on completed document = %v, %v", touched, err)
	}
	doc, _ := repo.Get(ctx, id)
	if doc.Status != domain.DocumentStatusCompleted {
		t.Errorf("status = %s, want completed", doc.Status)
	}
}

func TestDocumentRepo_NotFound(t *testing.T) {
	repo := NewDocumentRepo(NewMemoryStorage())
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Errorf("Get: expected ErrDocumentNotFound, got %v", err)
	}
	if err := repo.MarkStatus(ctx, "missing", domain.DocumentStatusFailed, "x"); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Errorf("MarkStatus: expected ErrDocumentNotFound, got %v", err)
	}
}

func TestFailedRepo_Ordering(t *testing.T) {
	store, _ := newTestStore()
	repo := NewFailedRepo(store)
	ctx := context.Background()

	first := &domain.FailedEvent{Event: domain.Event{ID: "a"}, CreatedAt: time.Unix(1, 0)}
	second := &domain.FailedEvent{Event: domain.Event{ID: "b"}, CreatedAt: time.Unix(2, 0)}
	_ = repo.Add(ctx, first)
	_ = repo.Add(ctx, second)
	_ = repo.IncrementRetry(ctx, first.ID)

	next, _ := repo.GetNext(ctx)
	if next == nil || next.Event.ID != "b" {
		t.Errorf("next = %+v, want event b (fewest retries)", next)
	}

	_ = repo.MarkResolved(ctx, second.ID)
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
