package settlement

import (
	"context"
	"encoding/json"
	"log"

	"goinvault/internal/claim"
	"goinvault/internal/kafka"
)

// Handler reacts to decoded settlement events.
type Handler interface {
	HandleSettlement(ctx context.Context, event claim.SettlementEvent) error
}

// HandlerFunc makes ordinary functions usable as settlement handlers.
type HandlerFunc func(ctx context.Context, event claim.SettlementEvent) error

// HandleSettlement implements Handler.
func (f HandlerFunc) HandleSettlement(ctx context.Context, event claim.SettlementEvent) error {
	return f(ctx, event)
}

// Consumer wraps a low-level Kafka consumer and decodes settlement
// events.
type Consumer struct {
	consumer *kafka.Consumer
}

// NewConsumer wires the handler through the low-level consumer.
func NewConsumer(brokers []string, groupID, topic string, handler Handler) (*Consumer, error) {
	llHandler := kafka.HandlerFunc(func(ctx context.Context, value []byte) error {
		var event claim.SettlementEvent
		if err := json.Unmarshal(value, &event); err != nil {
			log.Printf("settlement consumer decode error: %v", err)
			return nil
		}
		return handler.HandleSettlement(ctx, event)
	})
	cons, err := kafka.NewConsumer(brokers, groupID, topic, llHandler)
	if err != nil {
		return nil, err
	}
	return &Consumer{consumer: cons}, nil
}

// Start begins consuming events.
func (c *Consumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Close cleans up resources.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}
