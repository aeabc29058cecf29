package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/strategist/internal/strategy"
)

// StoredRecord is an accepted learning record as persisted in the sink.
type StoredRecord struct {
	ID        string                  `json:"id"`
	CreatedAt int64                   `json:"createdAt"` // unix ms
	Record    strategy.EnrichedRecord `json:"record"`
}

// WriteRecord persists an accepted record and returns its generated id.
func (db *DB) WriteRecord(ctx context.Context, rec *strategy.EnrichedRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("write record: nil record")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx, `
		INSERT INTO learning_records
			(id, app_id, strategy, memory_freed_mb, speed_gain_percent, effectiveness, user_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, rec.AppID, string(rec.Strategy), rec.MemoryFreedMB, rec.SpeedGainPercent,
		rec.EffectivenessScore, rec.UserID, string(data), time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// RecentRecords returns up to limit records, newest first.
func (db *DB) RecentRecords(ctx context.Context, limit int) ([]StoredRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, payload, created_at FROM learning_records
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var r StoredRecord
		var data string
		if err := rows.Scan(&r.ID, &data, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &r.Record); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRecords returns the number of stored records.
func (db *DB) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM learning_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
