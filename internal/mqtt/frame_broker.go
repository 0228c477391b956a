package mqtt

import (
	"context"

	"hotelguard-ingest/internal/service"

	"go.uber.org/zap"
)

// FrameBroker feeds broker-delivered frame batches into the same pipeline as
// the HTTP intake. Message bodies use the JSON batch wire format.
type FrameBroker struct {
	svc    *service.CVService
	topic  string
	logger *zap.Logger
}

func NewFrameBroker(svc *service.CVService, topic string, logger *zap.Logger) *FrameBroker {
	return &FrameBroker{svc: svc, topic: topic, logger: logger}
}

// Start subscribes with QoS 1; the batch dedup keys make redelivery harmless.
func (b *FrameBroker) Start(client *Client) error {
	if err := client.Subscribe(b.topic, 1, b.HandleMessage); err != nil {
		return err
	}
	b.logger.Info("frame broker started", zap.String("topic", b.topic))
	return nil
}

func (b *FrameBroker) Stop(client *Client) error {
	if err := client.Unsubscribe(b.topic); err != nil {
		b.logger.Error("frame broker unsubscribe failed", zap.Error(err))
		return err
	}
	b.logger.Info("frame broker stopped")
	return nil
}

// HandleMessage processes one batch message. A malformed batch is dropped
// with a log line; there is no requester to bounce it back to.
func (b *FrameBroker) HandleMessage(topic string, payload []byte) error {
	items, err := service.DecodeItems(payload)
	if err != nil {
		b.logger.Warn("dropping malformed frame batch",
			zap.String("topic", topic), zap.Error(err))
		return nil
	}

	result := b.svc.ProcessBatch(context.Background(), items)
	if len(result.Errors) > 0 {
		b.logger.Warn("frame batch processed with errors",
			zap.String("topic", topic),
			zap.Int("accepted", result.Accepted),
			zap.Int("inserted", result.Inserted),
			zap.Strings("errors", result.Errors))
		return nil
	}

	b.logger.Info("frame batch processed",
		zap.String("topic", topic),
		zap.Int("accepted", result.Accepted),
		zap.Int("inserted", result.Inserted))
	return nil
}
