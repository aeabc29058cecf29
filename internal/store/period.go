package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/strategist/internal/strategy"
)

const (
	systemNamespace       = "system"
	conservativePeriodKey = "conservative_period"
)

// ConservativePeriod returns the stored conservative period, or nil if none
// was ever started.
func (db *DB) ConservativePeriod(ctx context.Context) (*strategy.ConservativePeriod, error) {
	var p strategy.ConservativePeriod
	err := db.GetJSON(ctx, systemNamespace, conservativePeriodKey, &p)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// StartConservativePeriod records an active period of days starting at now,
// replacing any previous one.
func (db *DB) StartConservativePeriod(ctx context.Context, now time.Time, days int) (*strategy.ConservativePeriod, error) {
	if days <= 0 {
		return nil, fmt.Errorf("conservative period: days must be positive, got %d", days)
	}
	p := &strategy.ConservativePeriod{
		Status:    strategy.ConservativePeriodActive,
		StartedAt: now.UTC(),
		EndDate:   now.UTC().AddDate(0, 0, days),
	}
	if err := db.PutJSON(ctx, systemNamespace, conservativePeriodKey, p); err != nil {
		return nil, err
	}
	return p, nil
}

// MachinePeriod returns the stored period for a machine. An upgraded machine
// with no active period starts a new one of days.
func (db *DB) MachinePeriod(ctx context.Context, now time.Time, upgradeDetected bool, days int) (*strategy.ConservativePeriod, error) {
	p, err := db.ConservativePeriod(ctx)
	if err != nil {
		return nil, err
	}
	if !upgradeDetected || p.Active(now) {
		return p, nil
	}
	return db.StartConservativePeriod(ctx, now, days)
}
