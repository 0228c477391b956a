package repository

import (
	"context"

	"hotelguard-ingest/internal/domain"
)

// ConnectorsRepo resolves the enabled connector for a webhook delivery and
// tracks connector liveness.
type ConnectorsRepo interface {
	// FindEnabled returns ErrNotFound when no enabled connector matches.
	FindEnabled(ctx context.Context, propertyID, system, vendor string) (*domain.Connector, error)
	TouchLastSeen(ctx context.Context, connectorID string) error
}
