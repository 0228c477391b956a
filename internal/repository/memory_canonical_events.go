package repository

import (
	"context"
	"sync"
	"time"

	"hotelguard-ingest/internal/domain"
)

type MemoryCanonicalEventsRepo struct {
	mu     sync.Mutex
	Events []domain.CanonicalEvent
	// FailInsert forces InsertBatch to fail, for exercising the
	// raw-preserved-on-canonicalization-failure path.
	FailInsert error
}

func NewMemoryCanonicalEventsRepo() *MemoryCanonicalEventsRepo {
	return &MemoryCanonicalEventsRepo{}
}

var _ CanonicalEventsRepo = (*MemoryCanonicalEventsRepo)(nil)

func (r *MemoryCanonicalEventsRepo) InsertBatch(_ context.Context, events []domain.CanonicalEvent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInsert != nil {
		return 0, r.FailInsert
	}
	for i := range events {
		events[i].ID = int64(len(r.Events) + 1)
		r.Events = append(r.Events, events[i])
	}
	return len(events), nil
}

func (r *MemoryCanonicalEventsRepo) ListByProperty(_ context.Context, propertyID string, since time.Time, limit int) ([]domain.CanonicalEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CanonicalEvent
	for _, ev := range r.Events {
		if ev.PropertyID == propertyID && !ev.OccurredAt.Before(since) {
			out = append(out, ev)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
