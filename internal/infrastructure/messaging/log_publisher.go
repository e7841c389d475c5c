package messaging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/medistore/medistore-api/internal/core/domain"
)

// LogPublisher writes order events to the log. It stands in for Kafka when
// no brokers are configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish implements ports.EventPublisher.
func (p *LogPublisher) Publish(_ context.Context, event domain.OrderEvent) error {
	p.log.Info().
		Str("type", string(event.Type)).
		Str("order_id", event.OrderID).
		Str("customer_id", event.CustomerID).
		Str("status", string(event.Status)).
		Str("previous_status", string(event.PreviousStatus)).
		Str("total", event.Total.StringFixed(2)).
		Str("actor_role", string(event.ActorRole)).
		Msg("order event")
	return nil
}
