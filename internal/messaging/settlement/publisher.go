package settlement

import (
	"context"
	"encoding/json"
	"strings"

	"goinvault/internal/claim"
	"goinvault/internal/kafka"
)

// Publisher converts settlement events into Kafka messages.
type Publisher struct {
	producer *kafka.Producer
}

// NewPublisher constructs a Publisher.
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{producer: producer}
}

// Publish pushes a settlement event onto Kafka, keyed by claimant so
// one miner's settlements are consumed in order.
func (p *Publisher) Publish(ctx context.Context, event claim.SettlementEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.producer.Send(ctx, strings.ToLower(event.Claimant), payload)
}
