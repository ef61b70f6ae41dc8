package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/veridian-network/veridian-api/internal/models"

	_ "github.com/lib/pq"
)

// PostgresStore is the Store implementation for deployments that outgrow the
// JSON file. Same append-only semantics, dedupe enforced by a unique index.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: db}

	if err := s.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return s, nil
}

// Load implements the Store interface
func (s *PostgresStore) Load(ctx context.Context) ([]models.AnalyticsDataPoint, error) {
	return s.Snapshot(ctx)
}

// Append implements the Store interface
func (s *PostgresStore) Append(ctx context.Context, point models.AnalyticsDataPoint) error {
	pools, err := json.Marshal(point.Pools)
	if err != nil {
		return fmt.Errorf("failed to encode pool metrics: %w", err)
	}

	query := `
        INSERT INTO analytics_history (
            timestamp, base_price, base_total_supply, base_market_cap, tvl,
            pools, secondary_price, secondary_total_supply, secondary_market_cap
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9
        )
    `

	_, err = s.db.ExecContext(ctx, query,
		point.Timestamp,
		point.BasePrice,
		point.BaseTotalSupply,
		point.BaseMarketCap,
		point.TVL,
		pools,
		point.SecondaryPrice,
		point.SecondaryTotalSupply,
		point.SecondaryMarketCap,
	)
	if err != nil {
		return fmt.Errorf("failed to save data point: %w", err)
	}
	return nil
}

// Snapshot implements the Store interface
func (s *PostgresStore) Snapshot(ctx context.Context) ([]models.AnalyticsDataPoint, error) {
	query := `
        SELECT timestamp, base_price, base_total_supply, base_market_cap, tvl,
               pools, secondary_price, secondary_total_supply, secondary_market_cap
        FROM analytics_history
        ORDER BY timestamp ASC
    `

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics history: %w", err)
	}
	defer rows.Close()

	var history []models.AnalyticsDataPoint
	for rows.Next() {
		var point models.AnalyticsDataPoint
		var pools []byte
		err := rows.Scan(
			&point.Timestamp,
			&point.BasePrice,
			&point.BaseTotalSupply,
			&point.BaseMarketCap,
			&point.TVL,
			&pools,
			&point.SecondaryPrice,
			&point.SecondaryTotalSupply,
			&point.SecondaryMarketCap,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data point: %w", err)
		}
		if err := json.Unmarshal(pools, &point.Pools); err != nil {
			return nil, fmt.Errorf("failed to decode pool metrics: %w", err)
		}
		history = append(history, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return history, nil
}

// Latest implements the Store interface
func (s *PostgresStore) Latest(ctx context.Context) (*models.AnalyticsDataPoint, bool, error) {
	query := `
        SELECT timestamp, base_price, base_total_supply, base_market_cap, tvl,
               pools, secondary_price, secondary_total_supply, secondary_market_cap
        FROM analytics_history
        ORDER BY timestamp DESC
        LIMIT 1
    `

	var point models.AnalyticsDataPoint
	var pools []byte
	err := s.db.QueryRowContext(ctx, query).Scan(
		&point.Timestamp,
		&point.BasePrice,
		&point.BaseTotalSupply,
		&point.BaseMarketCap,
		&point.TVL,
		&pools,
		&point.SecondaryPrice,
		&point.SecondaryTotalSupply,
		&point.SecondaryMarketCap,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query latest data point: %w", err)
	}
	if err := json.Unmarshal(pools, &point.Pools); err != nil {
		return nil, false, fmt.Errorf("failed to decode pool metrics: %w", err)
	}
	return &point, true, nil
}

func (s *PostgresStore) initTables() error {
	query := `CREATE TABLE IF NOT EXISTS analytics_history (
		id SERIAL PRIMARY KEY,
		timestamp BIGINT UNIQUE NOT NULL,
		base_price NUMERIC(24, 12),
		base_total_supply NUMERIC(24, 6),
		base_market_cap NUMERIC(24, 6),
		tvl NUMERIC(24, 6),
		pools JSONB,
		secondary_price NUMERIC(24, 12),
		secondary_total_supply NUMERIC(24, 6),
		secondary_market_cap NUMERIC(24, 6)
	)`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	return nil
}
