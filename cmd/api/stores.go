package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medistore/medistore-api/internal/api/handler"
	"github.com/medistore/medistore-api/internal/core/ports"
	"github.com/medistore/medistore-api/internal/infrastructure/db/mongo"
	"github.com/medistore/medistore-api/internal/infrastructure/db/postgres"
	"github.com/medistore/medistore-api/internal/pkg/config"
)

// stores bundles the persistence adapters selected by STORE_DRIVER.
type stores struct {
	orders    ports.OrderStore
	medicines ports.MedicineRepository
	reviews   ports.ReviewRepository
	users     ports.UserRepository
	ping      handler.PingFunc
	close     func()
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")
		return &stores{
			orders:    mongo.NewOrderStore(client, db),
			medicines: mongo.NewMedicineRepository(db),
			reviews:   mongo.NewReviewRepository(db),
			users:     mongo.NewUserRepository(db),
			ping:      func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:     func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case config.DriverPostgres:
		if err := postgres.Migrate(cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
			return nil, err
		}
		db, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL, MaxOpenConns: 25})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		return &stores{
			orders:    postgres.NewOrderStore(db),
			medicines: postgres.NewMedicineRepository(db),
			reviews:   postgres.NewReviewRepository(db),
			users:     postgres.NewUserRepository(db),
			ping:      db.PingContext,
			close:     func() { _ = db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
