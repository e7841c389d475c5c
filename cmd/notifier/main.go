// Command notifier consumes order events from Kafka and notifies customers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medistore/medistore-api/internal/infrastructure/messaging"
	"github.com/medistore/medistore-api/internal/infrastructure/telemetry"
	"github.com/medistore/medistore-api/internal/pkg/config"
	"github.com/medistore/medistore-api/pkg/logger"
)

const serviceName = "medistore-notifier"

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.IsDevelopment(), Service: serviceName})

	brokers := cfg.Kafka.BrokerList()
	if len(brokers) == 0 {
		log.Fatal().Msg("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, cfg.Otel.Endpoint, serviceName, "1.0.0")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	consumer := messaging.NewConsumer(brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	defer func() { _ = consumer.Close() }()

	notifier := messaging.NewNotifier(log)

	log.Info().Str("topic", cfg.Kafka.Topic).Str("group_id", cfg.Kafka.GroupID).Msg("starting notifier")
	if err := consumer.Consume(ctx, notifier.Handle); err != nil {
		log.Error().Err(err).Msg("consumer stopped with error")
		return
	}
	log.Info().Msg("notifier stopped")
}
