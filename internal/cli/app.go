package cli

import (
	"context"
	"fmt"

	"github.com/lazypower/strategist/internal/catalog"
	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/engine"
	"github.com/lazypower/strategist/internal/entitlement"
	"github.com/lazypower/strategist/internal/learned"
	"github.com/lazypower/strategist/internal/logging"
	"github.com/lazypower/strategist/internal/selector"
	"github.com/lazypower/strategist/internal/store"
	"github.com/rs/zerolog"
)

// openDB opens the configured database, or the default one.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// newEngine builds and initializes the combination engine over the embedded
// catalog. Learned and personal layers come from feed and db.
func newEngine(ctx context.Context, cfg config.Config, db *store.DB, feed learned.Feed, log zerolog.Logger) (*engine.Engine, error) {
	apps, err := catalog.Apps()
	if err != nil {
		return nil, fmt.Errorf("load app catalog: %w", err)
	}
	eng := engine.New(cfg.Engine, apps, feed, db,
		engine.WithLogger(logging.Component(log, "engine")),
		engine.WithLearnedCache(db),
	)
	eng.Initialize(ctx)
	return eng, nil
}

func newSelector(cfg config.Config, log zerolog.Logger) (*selector.Selector, error) {
	systems, err := catalog.Systems()
	if err != nil {
		return nil, fmt.Errorf("load system registry: %w", err)
	}
	ent, err := entitlement.NewStatic(cfg.Entitlement.Plan)
	if err != nil {
		return nil, err
	}
	return selector.New(systems, ent, cfg.Selector, selector.WithLogger(logging.Component(log, "selector"))), nil
}
