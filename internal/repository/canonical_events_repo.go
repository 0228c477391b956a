package repository

import (
	"context"
	"time"

	"hotelguard-ingest/internal/domain"
)

// CanonicalEventsRepo stores normalized events and serves the ops export.
type CanonicalEventsRepo interface {
	InsertBatch(ctx context.Context, events []domain.CanonicalEvent) (int, error)
	ListByProperty(ctx context.Context, propertyID string, since time.Time, limit int) ([]domain.CanonicalEvent, error)
}
