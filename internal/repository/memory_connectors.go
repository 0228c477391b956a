package repository

import (
	"context"
	"sync"
	"time"

	"hotelguard-ingest/internal/domain"
)

// MemoryConnectorsRepo keeps connectors in memory for tests and local dev.
type MemoryConnectorsRepo struct {
	mu         sync.RWMutex
	connectors []*domain.Connector
}

func NewMemoryConnectorsRepo(connectors ...*domain.Connector) *MemoryConnectorsRepo {
	return &MemoryConnectorsRepo{connectors: connectors}
}

var _ ConnectorsRepo = (*MemoryConnectorsRepo)(nil)

func (r *MemoryConnectorsRepo) Add(c *domain.Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors = append(r.connectors, c)
}

func (r *MemoryConnectorsRepo) FindEnabled(_ context.Context, propertyID, system, vendor string) (*domain.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.connectors {
		if c.Enabled && c.PropertyID == propertyID && c.System == system && c.Vendor == vendor {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryConnectorsRepo) TouchLastSeen(_ context.Context, connectorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.connectors {
		if c.ConnectorID == connectorID {
			now := time.Now()
			c.LastSeenAt = &now
		}
	}
	return nil
}
