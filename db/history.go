// Package db persists forecast snapshots to PostgreSQL so availability can
// be charted over time and compared with what was forecast.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"slurmgpu/forecast"
)

// HistoryStore appends one row per computed snapshot.  It assumes a table
// with the following schema:
//
//	CREATE TABLE IF NOT EXISTS forecast_history (
//	  id            BIGSERIAL PRIMARY KEY,
//	  generated_at  TIMESTAMPTZ NOT NULL,
//	  scope         TEXT        NOT NULL,
//	  capacity      INTEGER     NOT NULL,
//	  available_now INTEGER     NOT NULL,
//	  min_available INTEGER     NOT NULL,
//	  max_available INTEGER     NOT NULL,
//	  stats         TEXT        NOT NULL,
//	  points        TEXT        NOT NULL
//	);
//
// Multiple daemons can share one database; rows are distinguished by scope.
type HistoryStore struct {
	db *sql.DB
}

// HistoryRow is one persisted snapshot summary.
type HistoryRow struct {
	GeneratedAt  time.Time        `json:"generated_at"`
	Scope        string           `json:"scope"`
	Capacity     int              `json:"capacity"`
	AvailableNow int              `json:"available_now"`
	MinAvailable int              `json:"min_available"`
	MaxAvailable int              `json:"max_available"`
	Stats        forecast.Stats   `json:"stats"`
	Points       []forecast.Point `json:"points"`
}

// Open connects to the database named by a pgx connection string and
// verifies the connection.
func Open(ctx context.Context, connString string) (*HistoryStore, error) {
	sqlDB, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("history store: open: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}
	return NewHistoryStore(sqlDB), nil
}

// NewHistoryStore wraps an existing *sql.DB.
func NewHistoryStore(sqlDB *sql.DB) *HistoryStore {
	return &HistoryStore{db: sqlDB}
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Save inserts one snapshot summary for a scope.
func (s *HistoryStore) Save(ctx context.Context, scope string, snapshot *forecast.Snapshot) error {
	const insertStmt = `
INSERT INTO forecast_history (
  generated_at, scope, capacity, available_now, min_available, max_available, stats, points
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	statsJSON, err := json.Marshal(snapshot.Stats)
	if err != nil {
		return fmt.Errorf("history store: encode stats: %w", err)
	}
	pointsJSON, err := json.Marshal(snapshot.Points)
	if err != nil {
		return fmt.Errorf("history store: encode points: %w", err)
	}
	_, err = s.db.ExecContext(ctx, insertStmt,
		snapshot.GeneratedAt,
		scope,
		snapshot.Capacity,
		snapshot.CurrentAvailable(),
		snapshot.MinAvailable(),
		snapshot.MaxAvailable(),
		string(statsJSON),
		string(pointsJSON),
	)
	if err != nil {
		return fmt.Errorf("history store: insert snapshot: %w", err)
	}
	return nil
}

// Recent returns the latest rows for one scope, newest first.
func (s *HistoryStore) Recent(ctx context.Context, scope string, limit int) ([]HistoryRow, error) {
	const q = `
SELECT generated_at, scope, capacity, available_now, min_available, max_available, stats, points
FROM forecast_history
WHERE scope = $1
ORDER BY generated_at DESC
LIMIT $2
`
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, q, scope, limit)
	if err != nil {
		return nil, fmt.Errorf("history store: query: %w", err)
	}
	defer rows.Close()

	var result []HistoryRow
	for rows.Next() {
		var row HistoryRow
		var statsJSON, pointsJSON string
		if err := rows.Scan(&row.GeneratedAt, &row.Scope, &row.Capacity,
			&row.AvailableNow, &row.MinAvailable, &row.MaxAvailable,
			&statsJSON, &pointsJSON); err != nil {
			return nil, fmt.Errorf("history store: scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(statsJSON), &row.Stats); err != nil {
			return nil, fmt.Errorf("history store: decode stats: %w", err)
		}
		if err := json.Unmarshal([]byte(pointsJSON), &row.Points); err != nil {
			return nil, fmt.Errorf("history store: decode points: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history store: rows error: %w", err)
	}
	return result, nil
}
