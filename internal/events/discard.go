package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher stands in for Kafka when it is disabled: events are written
// to the log instead.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishOrderCreated(_ context.Context, e OrderCreatedEvent) error {
	p.logger.Info("Order event", zap.String("type", e.Type), zap.String("order_id", e.OrderID))
	return nil
}

func (p *LogPublisher) PublishOrderCancelled(_ context.Context, e OrderCancelledEvent) error {
	p.logger.Info("Order event", zap.String("type", e.Type), zap.String("order_id", e.OrderID))
	return nil
}

func (p *LogPublisher) PublishStatusChanged(_ context.Context, e StatusChangedEvent) error {
	p.logger.Info("Order event", zap.String("type", e.Type), zap.String("order_id", e.OrderID),
		zap.String("from", e.From), zap.String("to", e.To))
	return nil
}

func (p *LogPublisher) PublishCompensation(_ context.Context, e CompensationEvent) error {
	p.logger.Error("Compensation required",
		zap.String("product_id", e.ProductID),
		zap.Int("quantity", e.Quantity),
		zap.String("reason", e.Reason))
	return nil
}
