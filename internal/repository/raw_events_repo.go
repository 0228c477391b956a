package repository

import (
	"context"

	"hotelguard-ingest/internal/domain"
)

// RawEventsRepo stores authenticated vendor deliveries.
type RawEventsRepo interface {
	// Insert returns ErrDuplicate on a dedupe_key collision; the delivery was
	// already processed and the caller reports deduped success.
	Insert(ctx context.Context, ev *domain.RawEvent) error
	// AttachError records a later processing failure on an existing row. The
	// raw event itself is preserved for replay and inspection.
	AttachError(ctx context.Context, rawEventID, note string) error
}
