package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// RoundStore keeps the historical record of finished rounds. It is a
// write-mostly ledger; the live game never reads it back.
type RoundStore struct {
	db *sql.DB
}

// RoundRecord is one finished round: every number called, the confirmed
// winner phones and when it ended.
type RoundRecord struct {
	ID      int64     `json:"id"`
	Numbers []int     `json:"numbers"`
	Winners []string  `json:"winners"`
	EndedAt time.Time `json:"endedAt"`
}

const roundsSchema = `
	CREATE TABLE IF NOT EXISTS rounds (
		id        BIGSERIAL PRIMARY KEY,
		numbers   JSONB NOT NULL,
		winners   JSONB NOT NULL,
		ended_at  TIMESTAMPTZ NOT NULL
	)
`

// NewRoundStore connects to Postgres and makes sure the schema exists.
func NewRoundStore(ctx context.Context, dsn string) (*RoundStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if _, err := db.ExecContext(ctx, roundsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create rounds table: %w", err)
	}
	return &RoundStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (rs *RoundStore) Close() error {
	return rs.db.Close()
}

// SaveRound appends one finished round to the ledger.
func (rs *RoundStore) SaveRound(ctx context.Context, record RoundRecord) error {
	numbers, err := json.Marshal(record.Numbers)
	if err != nil {
		return fmt.Errorf("failed to serialize numbers: %w", err)
	}
	winners, err := json.Marshal(record.Winners)
	if err != nil {
		return fmt.Errorf("failed to serialize winners: %w", err)
	}

	endedAt := record.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}

	query := `INSERT INTO rounds (numbers, winners, ended_at) VALUES ($1, $2, $3)`
	if _, err := rs.db.ExecContext(ctx, query, numbers, winners, endedAt); err != nil {
		return fmt.Errorf("failed to save round: %w", err)
	}
	return nil
}

// RecentRounds returns up to limit rounds, newest first.
func (rs *RoundStore) RecentRounds(ctx context.Context, limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, numbers, winners, ended_at FROM rounds ORDER BY ended_at DESC, id DESC LIMIT $1`
	rows, err := rs.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var records []RoundRecord
	for rows.Next() {
		var (
			record  RoundRecord
			numbers []byte
			winners []byte
		)
		if err := rows.Scan(&record.ID, &numbers, &winners, &record.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", err)
		}
		if err := json.Unmarshal(numbers, &record.Numbers); err != nil {
			return nil, fmt.Errorf("failed to deserialize numbers: %w", err)
		}
		if err := json.Unmarshal(winners, &record.Winners); err != nil {
			return nil, fmt.Errorf("failed to deserialize winners: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating round rows: %w", err)
	}
	return records, nil
}
