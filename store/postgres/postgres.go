// Package postgres provides a PostgreSQL-backed gateway.Store.
//
// The debit is a conditional single-statement UPDATE, so concurrent
// debits for one user serialize on the row and cannot lose updates or
// drive the balance negative.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metabayn/gateway"
)

// Store is a PostgreSQL-backed gateway.Store.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

var _ gateway.Store = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "gateway_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a new PostgreSQL-backed Store.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "gateway_",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) pricesTable() string   { return s.tablePrefix + "model_prices" }
func (s *Store) configTable() string   { return s.tablePrefix + "app_config" }
func (s *Store) balancesTable() string { return s.tablePrefix + "balances" }
func (s *Store) usageTable() string    { return s.tablePrefix + "usage_history" }

// EnsureSchema creates the required tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			model_name TEXT PRIMARY KEY,
			input_price DOUBLE PRECISION NOT NULL,
			output_price DOUBLE PRECISION NOT NULL,
			profit_multiplier DOUBLE PRECISION NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT true
		);
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT PRIMARY KEY,
			credits DOUBLE PRECISION NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			requested_model TEXT NOT NULL,
			used_model TEXT NOT NULL,
			input_tokens BIGINT NOT NULL,
			output_tokens BIGINT NOT NULL,
			cost_usd DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
	`, s.pricesTable(), s.configTable(), s.balancesTable(), s.usageTable())
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("gateway/postgres: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) GetActivePrice(ctx context.Context, model string) (gateway.PriceEntry, error) {
	var entry gateway.PriceEntry
	entry.Model = model
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT input_price, output_price, profit_multiplier, active FROM %s WHERE model_name = $1 AND active`, s.pricesTable()),
		model,
	).Scan(&entry.InputPerMTok, &entry.OutputPerMTok, &entry.ProfitMultiplier, &entry.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return gateway.PriceEntry{}, gateway.ErrNotFound
	}
	if err != nil {
		return gateway.PriceEntry{}, fmt.Errorf("gateway/postgres: get price: %w", err)
	}
	return entry, nil
}

func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.configTable()),
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", gateway.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("gateway/postgres: get config: %w", err)
	}
	return value, nil
}

func (s *Store) GetBalance(ctx context.Context, userID string) (float64, error) {
	var credits float64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT credits FROM %s WHERE user_id = $1`, s.balancesTable()),
		userID,
	).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("gateway/postgres: get balance: %w", err)
	}
	return credits, nil
}

// DebitBalance subtracts amount in one conditional UPDATE. No matching
// row means the user lacks the funds (or doesn't exist).
func (s *Store) DebitBalance(ctx context.Context, userID string, amount float64) (float64, error) {
	var credits float64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s SET credits = credits - $2 WHERE user_id = $1 AND credits >= $2 RETURNING credits`, s.balancesTable()),
		userID, amount,
	).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, gateway.ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("gateway/postgres: debit: %w", err)
	}
	return credits, nil
}

func (s *Store) AppendUsage(ctx context.Context, rec gateway.UsageRecord) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, user_id, requested_model, used_model, input_tokens, output_tokens, cost_usd, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.usageTable()),
		rec.ID, rec.UserID, rec.RequestedModel, rec.UsedModel,
		rec.InputTokens, rec.OutputTokens, rec.CostUSD, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("gateway/postgres: append usage: %w", err)
	}
	return nil
}

// CreditBalance adds amount to the user's balance, creating the row if
// needed. Used by the external top-up flow.
func (s *Store) CreditBalance(ctx context.Context, userID string, amount float64) (float64, error) {
	var credits float64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (user_id, credits) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET credits = %s.credits + $2
			RETURNING credits`, s.balancesTable(), s.balancesTable()),
		userID, amount,
	).Scan(&credits)
	if err != nil {
		return 0, fmt.Errorf("gateway/postgres: credit: %w", err)
	}
	return credits, nil
}
