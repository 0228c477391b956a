package repository

import (
	"context"
	"database/sql"
	"fmt"

	"hotelguard-ingest/internal/domain"
)

type PostgresRawEventsRepo struct {
	db *sql.DB
}

func NewPostgresRawEventsRepo(db *sql.DB) *PostgresRawEventsRepo {
	return &PostgresRawEventsRepo{db: db}
}

var _ RawEventsRepo = (*PostgresRawEventsRepo)(nil)

func (r *PostgresRawEventsRepo) Insert(ctx context.Context, ev *domain.RawEvent) error {
	var vendorEventID any
	if ev.VendorEventID != "" {
		vendorEventID = ev.VendorEventID
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO raw_events
			(raw_event_id, property_id, connector_id, system, vendor,
			 occurred_at, vendor_event_id, dedupe_key, signature_valid, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.RawEventID, ev.PropertyID, ev.ConnectorID, ev.System, ev.Vendor,
		ev.OccurredAt, vendorEventID, ev.DedupeKey, ev.SignatureValid, []byte(ev.Payload),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert raw event: %w", err)
	}
	return nil
}

func (r *PostgresRawEventsRepo) AttachError(ctx context.Context, rawEventID, note string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE raw_events SET error_note = $2 WHERE raw_event_id = $1`, rawEventID, note)
	if err != nil {
		return fmt.Errorf("failed to attach error note: %w", err)
	}
	return nil
}
