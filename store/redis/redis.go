// Package redis provides a Redis-backed gateway.Store.
//
// Balances are plain keys debited through a Lua script, so the
// check-and-subtract is one atomic step and safe across instances.
// Usage history goes to a list; prices and config live in hashes
// managed by the external admin surface.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/metabayn/gateway"
)

// Store is a Redis-backed gateway.Store.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ gateway.Store = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default "gateway:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a new Redis-backed Store.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: "gateway:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) balanceKey(userID string) string { return s.keyPrefix + "balance:" + userID }
func (s *Store) priceKey(model string) string    { return s.keyPrefix + "price:" + model }
func (s *Store) configKey(key string) string     { return s.keyPrefix + "config:" + key }
func (s *Store) usageKey() string                { return s.keyPrefix + "usage" }

// debitScript atomically checks and subtracts a balance.
// KEYS[1] = balance key
// ARGV[1] = amount
//
// Returns the new balance, or -1 when the balance cannot cover the
// amount.
var debitScript = goredis.NewScript(`
local bal = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
if bal < amount then
    return "-1"
end
return redis.call("INCRBYFLOAT", KEYS[1], -amount)
`)

func (s *Store) GetActivePrice(ctx context.Context, model string) (gateway.PriceEntry, error) {
	fields, err := s.client.HGetAll(ctx, s.priceKey(model)).Result()
	if err != nil {
		return gateway.PriceEntry{}, fmt.Errorf("gateway/redis: get price: %w", err)
	}
	if len(fields) == 0 || fields["active"] != "1" {
		return gateway.PriceEntry{}, gateway.ErrNotFound
	}

	input, _ := strconv.ParseFloat(fields["input_price"], 64)
	output, _ := strconv.ParseFloat(fields["output_price"], 64)
	mult, _ := strconv.ParseFloat(fields["profit_multiplier"], 64)
	return gateway.PriceEntry{
		Model:            model,
		InputPerMTok:     input,
		OutputPerMTok:    output,
		ProfitMultiplier: mult,
		Active:           true,
	}, nil
}

func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.configKey(key)).Result()
	if err == goredis.Nil {
		return "", gateway.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("gateway/redis: get config: %w", err)
	}
	return value, nil
}

func (s *Store) GetBalance(ctx context.Context, userID string) (float64, error) {
	raw, err := s.client.Get(ctx, s.balanceKey(userID)).Result()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("gateway/redis: get balance: %w", err)
	}
	bal, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("gateway/redis: parse balance: %w", err)
	}
	return bal, nil
}

func (s *Store) DebitBalance(ctx context.Context, userID string, amount float64) (float64, error) {
	raw, err := debitScript.Run(ctx, s.client, []string{s.balanceKey(userID)}, amount).Text()
	if err != nil {
		return 0, fmt.Errorf("gateway/redis: debit: %w", err)
	}
	bal, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("gateway/redis: parse debit result: %w", err)
	}
	if bal == -1 {
		return 0, gateway.ErrInsufficientBalance
	}
	return bal, nil
}

func (s *Store) AppendUsage(ctx context.Context, rec gateway.UsageRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("gateway/redis: marshal usage: %w", err)
	}
	if err := s.client.RPush(ctx, s.usageKey(), payload).Err(); err != nil {
		return fmt.Errorf("gateway/redis: append usage: %w", err)
	}
	return nil
}

// CreditBalance adds amount to the user's balance. Used by the external
// top-up flow.
func (s *Store) CreditBalance(ctx context.Context, userID string, amount float64) (float64, error) {
	bal, err := s.client.IncrByFloat(ctx, s.balanceKey(userID), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("gateway/redis: credit: %w", err)
	}
	return bal, nil
}
