package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"swingbot/internal/types"
)

// PostgresStore persists the trade stream in a Postgres trades table.
// Selected over the file store when POSTGRES_HOST is set.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to Postgres using the POSTGRES_* environment
// variables and ensures the trades table exists.
func NewPostgresStore(ctx context.Context, logger *slog.Logger) (*PostgresStore, error) {
	connStr := buildConnectionString()
	logger.Info("[POSTGRES] Connecting to database", "host", os.Getenv("POSTGRES_HOST"))

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("[POSTGRES] Connected to database")
	return s, nil
}

// buildConnectionString creates a Postgres connection string from environment variables
func buildConnectionString() string {
	host := getEnvOrDefault("POSTGRES_HOST", "localhost")
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	user := getEnvOrDefault("POSTGRES_USER", "swingbot")
	dbname := getEnvOrDefault("POSTGRES_DB", "swingbot")

	// Docker secret takes precedence over the env variable
	password := ""
	if data, err := os.ReadFile("/run/secrets/postgres_password"); err == nil {
		password = strings.TrimSpace(string(data))
	} else {
		password = os.Getenv("POSTGRES_PASSWORD")
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trades (
			id                 UUID PRIMARY KEY,
			seq                BIGINT NOT NULL,
			ts                 TIMESTAMPTZ NOT NULL,
			symbol             TEXT NOT NULL,
			side               TEXT NOT NULL,
			price              DOUBLE PRECISION NOT NULL,
			amount             DOUBLE PRECISION NOT NULL,
			dollar_amount      DOUBLE PRECISION NOT NULL,
			profit             DOUBLE PRECISION,
			cumulative_profit  DOUBLE PRECISION NOT NULL,
			net_invested_after DOUBLE PRECISION NOT NULL,
			description        TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure trades table: %w", err)
	}
	return nil
}

// Load returns all trades ordered by sequence.
func (s *PostgresStore) Load(ctx context.Context) ([]types.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, seq, ts, symbol, side, price, amount, dollar_amount,
		       profit, cumulative_profit, net_invested_after, description
		FROM trades
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var records []types.TradeRecord
	for rows.Next() {
		var rec types.TradeRecord
		var side string
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Timestamp, &rec.Symbol, &side,
			&rec.Price, &rec.Amount, &rec.DollarAmount,
			&rec.Profit, &rec.CumulativeProfit, &rec.NetInvestedAfter, &rec.Description); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		rec.Side = types.Side(side)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}

	s.logger.Info("[POSTGRES] Loaded trades", "count", len(records))
	return records, nil
}

// Append inserts one trade record.
func (s *PostgresStore) Append(ctx context.Context, rec types.TradeRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades (
			id, seq, ts, symbol, side, price, amount, dollar_amount,
			profit, cumulative_profit, net_invested_after, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		rec.ID, rec.Seq, rec.Timestamp, rec.Symbol, string(rec.Side),
		rec.Price, rec.Amount, rec.DollarAmount,
		rec.Profit, rec.CumulativeProfit, rec.NetInvestedAfter, rec.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("[POSTGRES] Connection closed")
	}
	return nil
}
