// Package events defines the lending lifecycle messages exchanged over RabbitMQ.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QueueName is the durable queue lifecycle events are published to
const QueueName = "library.transactions"

// Event types
const (
	TypeRequested = "transaction.requested"
	TypeApproved  = "transaction.approved"
	TypeDenied    = "transaction.denied"
	TypeReturned  = "transaction.returned"
	TypeDeleted   = "transaction.deleted"
)

// TransactionEvent is published after a lifecycle operation commits. It carries
// enough for a consumer to log or notify without reading the database.
type TransactionEvent struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	TransactionID uint    `json:"transaction_id"`
	UserID        uint    `json:"user_id"`
	BookID        uint    `json:"book_id"`
	Status        string  `json:"status"`
	ActorID       uint    `json:"actor_id"`
	OverdueDays   int     `json:"overdue_days,omitempty"`
	Fine          float64 `json:"fine,omitempty"`
	FineCollected bool    `json:"fine_collected,omitempty"`
	OccurredAt    string  `json:"occurred_at"`
}

// NewTransactionEvent stamps an event with a fresh id and time
func NewTransactionEvent(eventType string, at time.Time) TransactionEvent {
	return TransactionEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}

// Publisher sends lifecycle events
type Publisher interface {
	Publish(ctx context.Context, ev TransactionEvent) error
}

// NopPublisher drops every event; used when no broker is configured
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TransactionEvent) error { return nil }
