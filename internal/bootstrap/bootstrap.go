// Package bootstrap opens the configured document store and runs the
// explicit init phase every binary goes through before serving.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/catalog"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/config"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store/firestore"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store/memstore"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store/postgres"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/telemetry"
)

func OpenBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := telemetry.OpenDB("postgres", cfg.PostgresURL())
		if err != nil {
			return nil, store.Unavailable(fmt.Errorf("connect to postgres: %w", err))
		}
		return postgres.New(db, postgres.DefaultSchema), nil
	case config.BackendFirestore:
		b, err := firestore.Open(ctx, cfg.StoreEndpoint, cfg.StoreDatabase, cfg.StoreKey)
		if err != nil {
			return nil, store.Unavailable(fmt.Errorf("connect to firestore: %w", err))
		}
		return b, nil
	case config.BackendMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func OpenStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store.New(backend, store.WithCallTimeout(cfg.StoreTimeout)), nil
}

// Init ensures the well-known containers exist and, when seed is set, fills
// an empty catalog with the sample products.
func Init(ctx context.Context, s *store.Store, seed bool, logger *slog.Logger) error {
	if err := s.Registry().EnsureAll(ctx); err != nil {
		return fmt.Errorf("ensure containers: %w", err)
	}

	if !seed {
		return nil
	}

	seeder := catalog.NewSeeder(catalog.NewProductRepository(s), catalog.SampleProducts(), logger)
	if _, err := seeder.Seed(ctx); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	return nil
}
