package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/strategist/internal/strategy"
)

// LoadPreferences returns every stored preference in namespace, keyed by app id.
func (db *DB) LoadPreferences(ctx context.Context, namespace string) (map[string]strategy.Preference, error) {
	rows, err := db.QueryContext(ctx, "SELECT key, value FROM kv WHERE namespace = ?", namespace)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]strategy.Preference)
	for rows.Next() {
		var appID, data string
		if err := rows.Scan(&appID, &data); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		var p strategy.Preference
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decode preference %s: %w", appID, err)
		}
		prefs[appID] = p
	}
	return prefs, rows.Err()
}

// SavePreferences writes prefs into namespace in one transaction. Apps not
// present in prefs are left untouched.
func (db *DB) SavePreferences(ctx context.Context, namespace string, prefs map[string]strategy.Preference) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save preferences: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for appID, p := range prefs {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode preference %s: %w", appID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, namespace, appID, string(data), now); err != nil {
			return fmt.Errorf("save preference %s: %w", appID, err)
		}
	}
	return tx.Commit()
}
