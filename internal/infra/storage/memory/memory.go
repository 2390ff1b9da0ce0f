package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

type MemoryStorage struct {
	docs    map[string]*domain.Document
	byEvent map[string]string
	failed  map[string]*domain.FailedEvent
	mu      sync.RWMutex
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		docs:    make(map[string]*domain.Document),
		byEvent: make(map[string]string),
		failed:  make(map[string]*domain.FailedEvent),
		now:     time.Now,
	}
}

func copyDoc(d *domain.Document) *domain.Document {
	c := *d
	c.Result = maps.Clone(d.Result)
	return &c
}

// -----------------------------------------------------------------------------
// Document Repository
// -----------------------------------------------------------------------------

type DocumentRepo struct {
	store *MemoryStorage
}

func NewDocumentRepo(store *MemoryStorage) *DocumentRepo {
	return &DocumentRepo{store: store}
}

func (r *DocumentRepo) Store(ctx context.Context, doc *domain.Document) (string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := r.store.now()
	stored := copyDoc(doc)
	if id, ok := r.store.byEvent[doc.EventID]; ok {
		existing := r.store.docs[id]
		stored.ID = id
		stored.CreatedAt = existing.CreatedAt
		if stored.Result == nil {
			stored.Result = existing.Result
		}
	} else {
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
	}
	stored.UpdatedAt = now

	r.store.docs[stored.ID] = stored
	r.store.byEvent[stored.EventID] = stored.ID
	return stored.ID, nil
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (*domain.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	d, ok := r.store.docs[id]
	if !ok {
		return nil, storage.ErrDocumentNotFound
	}
	return copyDoc(d), nil
}

func (r *DocumentRepo) GetByEventID(ctx context.Context, eventID string) (*domain.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	id, ok := r.store.byEvent[eventID]
	if !ok {
		return nil, storage.ErrDocumentNotFound
	}
	return copyDoc(r.store.docs[id]), nil
}

func (r *DocumentRepo) GetPending(ctx context.Context, batchSize int) ([]*domain.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var pending []*domain.Document
	for _, d := range r.store.docs {
		if d.Status == domain.DocumentStatusPending {
			pending = append(pending, copyDoc(d))
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if batchSize > 0 && len(pending) > batchSize {
		pending = pending[:batchSize]
	}
	return pending, nil
}

func (r *DocumentRepo) MarkStatus(ctx context.Context, id string, status domain.DocumentStatus, lastError string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.docs[id]
	if !ok {
		return storage.ErrDocumentNotFound
	}
	d.Status = status
	d.Error = lastError
	d.UpdatedAt = r.store.now()
	return nil
}

func (r *DocumentRepo) TouchIfStatus(ctx context.Context, id string, status domain.DocumentStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.docs[id]
	if !ok {
		return false, storage.ErrDocumentNotFound
	}
	if d.Status != status {
		return false, nil
	}
	d.UpdatedAt = r.store.now()
	return true, nil
}

func (r *DocumentRepo) CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.DocumentStatus]int)
	for _, d := range r.store.docs {
		counts[d.Status]++
	}
	return counts, nil
}

// -----------------------------------------------------------------------------
// Failed Event Repository
// -----------------------------------------------------------------------------

type FailedRepo struct {
	store *MemoryStorage
}

func NewFailedRepo(store *MemoryStorage) *FailedRepo {
	return &FailedRepo{store: store}
}

func (r *FailedRepo) Add(ctx context.Context, fe *domain.FailedEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *fe
	if c.ID == "" {
		c.ID = uuid.NewString()
		fe.ID = c.ID
	}
	r.store.failed[c.ID] = &c
	return nil
}

func (r *FailedRepo) GetNext(ctx context.Context) (*domain.FailedEvent, error) {
	all, _ := r.GetAll(ctx)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r *FailedRepo) IncrementRetry(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if fe, ok := r.store.failed[id]; ok {
		fe.RetryCount++
		fe.LastAttempt = r.store.now()
	}
	return nil
}

func (r *FailedRepo) MarkResolved(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.failed, id)
	return nil
}

// GetAll returns parked events ordered by retry count, then age.
func (r *FailedRepo) GetAll(ctx context.Context) ([]*domain.FailedEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.FailedEvent, 0, len(r.store.failed))
	for _, fe := range r.store.failed {
		c := *fe
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RetryCount != out[j].RetryCount {
			return out[i].RetryCount < out[j].RetryCount
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *FailedRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.failed), nil
}
