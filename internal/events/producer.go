package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaProducer publishes order lifecycle events keyed by order id, so every
// event of one order lands on the same partition.
type KafkaProducer struct {
	writer  *kafka.Writer
	brokers []string
	logger  *zap.Logger
}

func NewKafkaProducer(brokers, topic string, logger *zap.Logger) (*KafkaProducer, error) {
	addrs := SplitBrokers(brokers)
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  10,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	return &KafkaProducer{writer: writer, brokers: addrs, logger: logger}, nil
}

func (p *KafkaProducer) PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) error {
	return p.publish(ctx, event.OrderID, event.EventID, event)
}

func (p *KafkaProducer) PublishOrderCancelled(ctx context.Context, event OrderCancelledEvent) error {
	return p.publish(ctx, event.OrderID, event.EventID, event)
}

func (p *KafkaProducer) PublishStatusChanged(ctx context.Context, event StatusChangedEvent) error {
	return p.publish(ctx, event.OrderID, event.EventID, event)
}

func (p *KafkaProducer) publish(ctx context.Context, orderID, eventID string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte("ORDER#" + orderID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to write event %s: %w", eventID, err)
	}

	p.logger.Debug("Order event published",
		zap.String("event_id", eventID),
		zap.String("order_id", orderID))
	return nil
}

// HealthCheck dials the first reachable broker.
func (p *KafkaProducer) HealthCheck(ctx context.Context) error {
	var lastErr error
	for _, addr := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("kafka unreachable: %w", lastErr)
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

func SplitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
