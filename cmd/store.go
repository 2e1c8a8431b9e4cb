package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/drylogs/internal/engine"
	"github.com/sells-group/drylogs/internal/resilience"
	"github.com/sells-group/drylogs/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "drylogs.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initService opens and migrates the store and builds the engine on it.
// Migration retries while the database is busy or still starting.
// The returned func closes the store.
func initService(ctx context.Context) (*engine.Service, func(), error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := resilience.Do(ctx, resilience.FromConfig(cfg.Retry), st.Migrate); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, eris.Wrap(err, "migrate store")
	}
	return engine.New(st, cfg), func() { st.Close() }, nil //nolint:errcheck
}
