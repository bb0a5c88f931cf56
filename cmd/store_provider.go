// File: cmd/store_provider.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xkilldash9x/wayfarer/internal/config"
	"github.com/xkilldash9x/wayfarer/internal/observability"
	"github.com/xkilldash9x/wayfarer/internal/store"
)

// storeProvider creates the run store. Tests inject a provider backed by a
// mock pool instead of a live database connection.
type storeProvider interface {
	// Create returns the store, a cleanup function releasing its resources,
	// and an error if the connection could not be established.
	Create(ctx context.Context, cfg config.Interface) (*store.Store, func(), error)
}

// defaultStoreProvider connects to PostgreSQL through a pgx pool.
type defaultStoreProvider struct{}

// NewStoreProvider returns the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the configured database, applies the schema and
// returns the store with a cleanup closing the pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (*store.Store, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (WAYFARER_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return s, cleanup, nil
}
