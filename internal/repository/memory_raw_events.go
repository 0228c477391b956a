package repository

import (
	"context"
	"sync"

	"hotelguard-ingest/internal/domain"
)

type MemoryRawEventsRepo struct {
	mu     sync.Mutex
	byKey  map[string]*domain.RawEvent
	Events []*domain.RawEvent
}

func NewMemoryRawEventsRepo() *MemoryRawEventsRepo {
	return &MemoryRawEventsRepo{byKey: make(map[string]*domain.RawEvent)}
}

var _ RawEventsRepo = (*MemoryRawEventsRepo)(nil)

func (r *MemoryRawEventsRepo) Insert(_ context.Context, ev *domain.RawEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[ev.DedupeKey]; ok {
		return ErrDuplicate
	}
	cp := *ev
	r.byKey[ev.DedupeKey] = &cp
	r.Events = append(r.Events, &cp)
	return nil
}

func (r *MemoryRawEventsRepo) AttachError(_ context.Context, rawEventID, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.Events {
		if ev.RawEventID == rawEventID {
			ev.ErrorNote = note
		}
	}
	return nil
}
