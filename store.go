package gateway

import "context"

// Config keys read from the persistent store. Both are managed by the
// external admin surface.
const (
	ConfigKeyProfitMargin = "profit_margin_percent"
	ConfigKeyCreditRate   = "usd_credit_rate"
)

// Store is the persistence capability the gateway consumes. The engine
// behind it is unspecified; see store (in-memory), store/postgres and
// store/redis for implementations.
type Store interface {
	// GetActivePrice returns the active price row for a model, or
	// ErrNotFound if no active entry exists.
	GetActivePrice(ctx context.Context, model string) (PriceEntry, error)

	// GetConfig returns the raw value for a config key, or ErrNotFound.
	GetConfig(ctx context.Context, key string) (string, error)

	// GetBalance returns the user's current credit balance.
	GetBalance(ctx context.Context, userID string) (float64, error)

	// DebitBalance atomically subtracts amount from the user's balance
	// and returns the new balance. It fails with ErrInsufficientBalance
	// instead of driving the balance negative.
	DebitBalance(ctx context.Context, userID string, amount float64) (float64, error)

	// AppendUsage appends one usage history row.
	AppendUsage(ctx context.Context, rec UsageRecord) error
}
