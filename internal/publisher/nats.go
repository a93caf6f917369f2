// Package publisher pushes dispatch events onto NATS for downstream
// consumers (dashboards, audit trails).
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/blockedby/stockwatch-os/internal/dispatcher"
)

// SubjectDispatched is the subject one event per dispatch result lands on.
const SubjectDispatched = "reports.dispatched"

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher implements dispatcher.EventPublisher
type NATSPublisher struct {
	nc NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: conn}
}

// PublishDispatched publishes one dispatch result event
func (p *NATSPublisher) PublishDispatched(_ context.Context, event dispatcher.DispatchedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish(SubjectDispatched, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
