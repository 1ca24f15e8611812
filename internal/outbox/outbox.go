// Package outbox implements the transactional outbox pattern: domain events
// are written to the outbox table inside the same transaction as the state
// change, then published to Kafka by a background publisher.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the registration service.
const (
	EventProviderRegistered = "provider.registered"
	EventEmailVerified      = "provider.email_verified"
)

// Event is an unserialized domain event headed for the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       any
}

// Entry is a persisted outbox row awaiting publication.
type Entry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// Store is the outbox persistence boundary. Append participates in the
// caller's transaction when one is carried in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
	FetchUnpublished(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

func marshalPayload(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return payload, nil
}
