package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/strategist/internal/strategy"
)

// LoadLearned returns the last-known-good learned layer.
func (db *DB) LoadLearned(ctx context.Context) (map[string]strategy.Learned, error) {
	rows, err := db.QueryContext(ctx, "SELECT app_id, payload FROM learned_strategies")
	if err != nil {
		return nil, fmt.Errorf("load learned: %w", err)
	}
	defer rows.Close()

	out := make(map[string]strategy.Learned)
	for rows.Next() {
		var appID, data string
		if err := rows.Scan(&appID, &data); err != nil {
			return nil, fmt.Errorf("scan learned: %w", err)
		}
		var l strategy.Learned
		if err := json.Unmarshal([]byte(data), &l); err != nil {
			return nil, fmt.Errorf("decode learned %s: %w", appID, err)
		}
		out[appID] = l
	}
	return out, rows.Err()
}

// SaveLearned upserts each learned strategy in learned.
func (db *DB) SaveLearned(ctx context.Context, learned map[string]strategy.Learned) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save learned: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for appID, l := range learned {
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("encode learned %s: %w", appID, err)
		}
		var validatedAt *int64
		if l.ValidatedAt != nil {
			ms := l.ValidatedAt.UnixMilli()
			validatedAt = &ms
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO learned_strategies (app_id, version, validated_at, payload, saved_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(app_id) DO UPDATE SET
				version = excluded.version,
				validated_at = excluded.validated_at,
				payload = excluded.payload,
				saved_at = excluded.saved_at
		`, appID, l.Version, validatedAt, string(data), now); err != nil {
			return fmt.Errorf("save learned %s: %w", appID, err)
		}
	}
	return tx.Commit()
}
