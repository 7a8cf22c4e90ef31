// Package notify publishes job outcome events so other services can react
// to finished conversions without polling the store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fabseal/fabseal/internal/worker/domain"
)

const contentType = "application/json"

// Publisher sends a message under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// Event is the JSON body of an outcome event.
type Event struct {
	RequestID  string    `json:"request_id"`
	EntryID    string    `json:"entry_id"`
	Consumer   string    `json:"consumer"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ResultSize int       `json:"result_size"`
	DurationMS int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent builds the event for outcome.
func NewEvent(outcome domain.Outcome) Event {
	return Event{
		RequestID:  outcome.RequestID.String(),
		EntryID:    outcome.EntryID,
		Consumer:   outcome.Consumer,
		Status:     string(outcome.Status),
		Error:      outcome.ErrorMessage(),
		ResultSize: outcome.ResultSize,
		DurationMS: outcome.Duration.Milliseconds(),
		OccurredAt: outcome.FinishedAt,
	}
}

// Notifier turns outcomes into events.
type Notifier struct {
	publisher Publisher
	logger    *slog.Logger
}

// New creates a Notifier.
func New(publisher Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		logger:    logger,
	}
}

// Report publishes the outcome under conversion.<status>.
func (n *Notifier) Report(ctx context.Context, outcome domain.Outcome) error {
	body, err := json.Marshal(NewEvent(outcome))
	if err != nil {
		return fmt.Errorf("failed to encode outcome event: %w", err)
	}

	key := outcome.RoutingKey()
	if err := n.publisher.Publish(ctx, key, body, contentType); err != nil {
		return fmt.Errorf("failed to publish outcome event: %w", err)
	}

	n.logger.Debug("Outcome event published",
		slog.String("request_id", outcome.RequestID.String()),
		slog.String("routing_key", key),
	)
	return nil
}
