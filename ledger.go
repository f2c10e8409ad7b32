package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// creditRateTTL is how long a fetched exchange rate stays cached.
const creditRateTTL = time.Hour

// Ledger converts USD cost into credit units and debits the durable
// user balance through the Store.
type Ledger struct {
	store        Store
	fallbackRate float64

	mu        sync.Mutex
	cached    float64
	fetchedAt time.Time
}

// NewLedger creates a Ledger. fallbackRate is the credits-per-USD rate
// used when the store has no configured rate.
func NewLedger(store Store, fallbackRate float64) *Ledger {
	return &Ledger{store: store, fallbackRate: fallbackRate}
}

// Charge converts costUSD to credits, applies the one-credit minimum
// and debits the user. It returns the charged credits and the balance
// after the debit.
func (l *Ledger) Charge(ctx context.Context, userID string, costUSD float64) (credits, balanceAfter float64, err error) {
	credits = costUSD * l.creditRate(ctx)
	if credits < 1 {
		credits = 1 // minimum charge per billed request
	}

	balanceAfter, err = l.store.DebitBalance(ctx, userID, credits)
	if errors.Is(err, ErrInsufficientBalance) {
		return 0, 0, fmt.Errorf("%w: %.2f credits required", ErrInsufficientBalance, credits)
	}
	if err != nil {
		return 0, 0, err
	}
	return credits, balanceAfter, nil
}

// creditRate returns credits per USD: the store-configured rate when
// available, the cached value within its TTL otherwise, and the
// hardcoded fallback as a last resort.
func (l *Ledger) creditRate(ctx context.Context) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached > 0 && time.Since(l.fetchedAt) < creditRateTTL {
		return l.cached
	}

	if raw, err := l.store.GetConfig(ctx, ConfigKeyCreditRate); err == nil {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			l.cached = v
			l.fetchedAt = time.Now()
			return v
		}
	}

	if l.cached > 0 {
		return l.cached
	}
	return l.fallbackRate
}
