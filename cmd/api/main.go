// Command api serves the medistore HTTP API.
//
//	@title						Medistore API
//	@version					1.0
//	@description				Medicine marketplace orders, checkout and inventory.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/medistore/medistore-api/internal/api"
	"github.com/medistore/medistore-api/internal/api/handler"
	"github.com/medistore/medistore-api/internal/core/domain"
	"github.com/medistore/medistore-api/internal/core/ports"
	"github.com/medistore/medistore-api/internal/core/service"
	"github.com/medistore/medistore-api/internal/infrastructure/db/redis"
	"github.com/medistore/medistore-api/internal/infrastructure/messaging"
	"github.com/medistore/medistore-api/internal/infrastructure/queue"
	"github.com/medistore/medistore-api/internal/infrastructure/telemetry"
	"github.com/medistore/medistore-api/internal/pkg/config"
	"github.com/medistore/medistore-api/pkg/logger"
)

const (
	serviceName    = "medistore-api"
	serviceVersion = "1.0.0"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("api stopped with error")
	}
	log.Info().Msg("api stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	shutdownTracing, err := telemetry.InitTracerProvider(ctx, cfg.Otel.Endpoint, serviceName, serviceVersion)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	// Redis backs checkout idempotency only; when it is down checkout keeps
	// working without replay protection.
	redisCfg := redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, checkout idempotency degraded")
		redisClient = redis.NewClient(redisCfg)
	}
	defer func() { _ = redisClient.Close() }()

	publisher, closePublisher := newPublisher(cfg, log)
	defer closePublisher()

	dispatcher := queue.NewDispatcher(cfg.Orders.EventWorkers, cfg.Orders.EventBuffer, publisher, log)
	dispatcher.Start(context.Background())

	restock := domain.RestockReactivate
	if !cfg.Orders.ReactivateOnCancel {
		restock = domain.RestockPreserveDisabled
	}

	authSvc := service.NewAuthService(st.users, cfg.JWTSecret, cfg.TokenTTL, log)
	medicineSvc := service.NewMedicineService(st.medicines, log)
	reviewSvc := service.NewReviewService(st.reviews, st.medicines, log)
	orderSvc := service.NewOrderService(st.orders, dispatcher, redis.NewIdempotencyStore(redisClient), service.OrderOptions{
		MaxPageSize:           cfg.Orders.MaxPageSize,
		RestockMode:           restock,
		IdempotencyTTL:        cfg.Redis.IdempotencyTTL,
		IdempotencyPendingTTL: cfg.Redis.PendingTTL,
	}, log)

	if cfg.Admin.Email != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			return err
		}
	}

	e := api.NewRouter(api.Dependencies{
		Auth:      authSvc,
		Medicines: medicineSvc,
		Orders:    orderSvc,
		Reviews:   reviewSvc,
		Readiness: map[string]handler.PingFunc{
			cfg.StoreDriver: st.ping,
			"redis":         func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		JWTSecret: cfg.JWTSecret,
		Logger:    log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(e, serviceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("starting api")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("order events still queued at shutdown")
	}
	return nil
}

// newPublisher picks Kafka when brokers are configured and falls back to
// logging events.
func newPublisher(cfg *config.Config, log zerolog.Logger) (ports.EventPublisher, func()) {
	brokers := cfg.Kafka.BrokerList()
	if len(brokers) == 0 {
		log.Info().Msg("no kafka brokers configured, order events are logged")
		return messaging.NewLogPublisher(log), func() {}
	}
	producer := messaging.NewProducer(brokers, cfg.Kafka.Topic)
	return producer, func() {
		if err := producer.Close(); err != nil {
			log.Warn().Err(err).Msg("kafka producer close failed")
		}
	}
}
