package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"hotelguard-ingest/internal/domain"
)

type PostgresConnectorsRepo struct {
	db *sql.DB
}

func NewPostgresConnectorsRepo(db *sql.DB) *PostgresConnectorsRepo {
	return &PostgresConnectorsRepo{db: db}
}

var _ ConnectorsRepo = (*PostgresConnectorsRepo)(nil)

func (r *PostgresConnectorsRepo) FindEnabled(ctx context.Context, propertyID, system, vendor string) (*domain.Connector, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT connector_id::text, property_id::text, system, vendor,
		       signing_secret, enabled, mapping, last_seen_at
		FROM connectors
		WHERE property_id = $1 AND system = $2 AND vendor = $3 AND enabled = TRUE`,
		propertyID, system, vendor,
	)

	var c domain.Connector
	var mapping []byte
	var lastSeen sql.NullTime
	err := row.Scan(&c.ConnectorID, &c.PropertyID, &c.System, &c.Vendor,
		&c.SigningSecret, &c.Enabled, &mapping, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connector: %w", err)
	}

	if len(mapping) > 0 {
		var m domain.ConnectorMapping
		if err := json.Unmarshal(mapping, &m); err != nil {
			return nil, fmt.Errorf("failed to decode connector mapping: %w", err)
		}
		c.Mapping = &m
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		c.LastSeenAt = &t
	}
	return &c, nil
}

func (r *PostgresConnectorsRepo) TouchLastSeen(ctx context.Context, connectorID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE connectors SET last_seen_at = now() WHERE connector_id = $1`, connectorID)
	if err != nil {
		return fmt.Errorf("failed to update connector last_seen_at: %w", err)
	}
	return nil
}
