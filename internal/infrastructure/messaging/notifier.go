package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medistore/medistore-api/internal/api/metrics"
	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/pkg/logger"
)

// Notifier turns order events into customer notifications. Delivery is a
// structured log line; a mail or push adapter would hang off Notify.
type Notifier struct {
	log zerolog.Logger
}

func NewNotifier(log zerolog.Logger) *Notifier {
	return &Notifier{log: log}
}

// Handle decodes one Kafka payload and notifies. Undecodable payloads are
// logged and skipped so a poison message cannot stall the partition.
func (n *Notifier) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		n.log.Error().Err(err).Msg("skipping undecodable order event")
		return nil
	}
	metrics.EventsConsumedTotal.WithLabelValues(string(event.Type)).Inc()
	return n.Notify(ctx, event)
}

// Notify logs the message the customer would receive for event.
func (n *Notifier) Notify(ctx context.Context, event domain.OrderEvent) error {
	log := logger.WithTrace(ctx, n.log)
	log.Info().
		Str("customer_id", event.CustomerID).
		Str("order_id", event.OrderID).
		Str("type", string(event.Type)).
		Msg(Message(event))
	return nil
}

// Message renders the customer-facing text for event.
func Message(event domain.OrderEvent) string {
	switch event.Type {
	case domain.EventOrderPlaced:
		return fmt.Sprintf("Your order %s was placed. Total: %s", event.OrderID, event.Total.StringFixed(2))
	case domain.EventOrderItemsUpdated:
		return fmt.Sprintf("Your order %s was updated. New total: %s", event.OrderID, event.Total.StringFixed(2))
	case domain.EventOrderCancelled:
		return fmt.Sprintf("Your order %s was cancelled.", event.OrderID)
	case domain.EventOrderStatusChanged:
		return fmt.Sprintf("Your order %s is now %s.", event.OrderID, event.Status)
	default:
		return fmt.Sprintf("Your order %s changed.", event.OrderID)
	}
}
