package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hotelguard-ingest/internal/domain"
	"hotelguard-ingest/internal/store"

	"go.uber.org/zap"
)

const connectorCacheTTL = 60 * time.Second

// CachedConnectorsRepo fronts a ConnectorsRepo with a KV cache so the webhook
// hot path does not hit Postgres on every delivery. Negative results are not
// cached: a newly enabled connector becomes visible immediately.
type CachedConnectorsRepo struct {
	inner  ConnectorsRepo
	kv     store.KV
	logger *zap.Logger
}

func NewCachedConnectorsRepo(inner ConnectorsRepo, kv store.KV, logger *zap.Logger) *CachedConnectorsRepo {
	return &CachedConnectorsRepo{inner: inner, kv: kv, logger: logger}
}

var _ ConnectorsRepo = (*CachedConnectorsRepo)(nil)

func cacheKey(propertyID, system, vendor string) string {
	return fmt.Sprintf("hotelguard:connector:%s:%s:%s", propertyID, system, vendor)
}

type cachedConnector struct {
	Connector     *domain.Connector `json:"connector"`
	SigningSecret string            `json:"signing_secret"`
}

func (r *CachedConnectorsRepo) FindEnabled(ctx context.Context, propertyID, system, vendor string) (*domain.Connector, error) {
	key := cacheKey(propertyID, system, vendor)

	if raw, err := r.kv.Get(ctx, key); err == nil {
		var cached cachedConnector
		if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.Connector != nil {
			cached.Connector.SigningSecret = cached.SigningSecret
			return cached.Connector, nil
		}
	} else if err != store.ErrMiss {
		r.logger.Warn("connector cache read failed", zap.Error(err))
	}

	c, err := r.inner.FindEnabled(ctx, propertyID, system, vendor)
	if err != nil {
		return nil, err
	}

	// SigningSecret carries json:"-", so it is cached alongside explicitly.
	if raw, err := json.Marshal(cachedConnector{Connector: c, SigningSecret: c.SigningSecret}); err == nil {
		if err := r.kv.Set(ctx, key, string(raw), connectorCacheTTL); err != nil {
			r.logger.Warn("connector cache write failed", zap.Error(err))
		}
	}
	return c, nil
}

func (r *CachedConnectorsRepo) TouchLastSeen(ctx context.Context, connectorID string) error {
	return r.inner.TouchLastSeen(ctx, connectorID)
}
