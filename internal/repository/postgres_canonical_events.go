package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hotelguard-ingest/internal/domain"
)

type PostgresCanonicalEventsRepo struct {
	db *sql.DB
}

func NewPostgresCanonicalEventsRepo(db *sql.DB) *PostgresCanonicalEventsRepo {
	return &PostgresCanonicalEventsRepo{db: db}
}

var _ CanonicalEventsRepo = (*PostgresCanonicalEventsRepo)(nil)

func (r *PostgresCanonicalEventsRepo) InsertBatch(ctx context.Context, events []domain.CanonicalEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, ev := range events {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal event data: %w", err)
		}
		var roomID any
		if ev.RoomID != "" {
			roomID = ev.RoomID
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO canonical_events
				(property_id, connector_id, system, vendor, event_type,
				 occurred_at, entity_type, entity_id, room_id, data, raw_event_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			ev.PropertyID, ev.ConnectorID, ev.System, ev.Vendor, ev.EventType,
			ev.OccurredAt, ev.EntityType, ev.EntityID, roomID, data, ev.RawEventID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert canonical event: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit canonical events: %w", err)
	}
	return inserted, nil
}

func (r *PostgresCanonicalEventsRepo) ListByProperty(ctx context.Context, propertyID string, since time.Time, limit int) ([]domain.CanonicalEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, property_id::text, connector_id::text, system, vendor,
		       event_type, occurred_at, entity_type, entity_id,
		       COALESCE(room_id, ''), data, raw_event_id::text
		FROM canonical_events
		WHERE property_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT $3`,
		propertyID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query canonical events: %w", err)
	}
	defer rows.Close()

	var events []domain.CanonicalEvent
	for rows.Next() {
		var ev domain.CanonicalEvent
		var data []byte
		if err := rows.Scan(&ev.ID, &ev.PropertyID, &ev.ConnectorID, &ev.System, &ev.Vendor,
			&ev.EventType, &ev.OccurredAt, &ev.EntityType, &ev.EntityID,
			&ev.RoomID, &data, &ev.RawEventID); err != nil {
			return nil, fmt.Errorf("failed to scan canonical event: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &ev.Data)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
