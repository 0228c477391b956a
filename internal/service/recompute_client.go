package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RecomputeInvoker nudges the external risk aggregator for a set of rooms.
// Best-effort: callers surface the error in their response error list but
// never fail on it. No retry or backoff here; the aggregator is independently
// schedulable and idempotent.
type RecomputeInvoker interface {
	Invoke(ctx context.Context, roomIDs []string) error
}

type HTTPRecomputeClient struct {
	client *resty.Client
	logger *zap.Logger
}

func NewHTTPRecomputeClient(url string, logger *zap.Logger) *HTTPRecomputeClient {
	client := resty.New().
		SetBaseURL(url).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &HTTPRecomputeClient{client: client, logger: logger}
}

var _ RecomputeInvoker = (*HTTPRecomputeClient)(nil)

func (c *HTTPRecomputeClient) Invoke(ctx context.Context, roomIDs []string) error {
	if len(roomIDs) == 0 {
		return nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"room_ids": roomIDs}).
		Post("")
	if err != nil {
		return fmt.Errorf("risk recompute call failed: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("risk recompute returned status %d", resp.StatusCode())
	}

	c.logger.Debug("risk recompute triggered", zap.Strings("room_ids", roomIDs))
	return nil
}

// NopRecompute is used when no aggregator URL is configured.
type NopRecompute struct{}

func (NopRecompute) Invoke(context.Context, []string) error { return nil }
