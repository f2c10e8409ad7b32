// Package store provides an in-memory gateway.Store, suitable for
// tests and single-process deployments. Durable engines live in the
// store/postgres and store/redis sub-modules.
package store

import (
	"context"
	"sync"

	"github.com/metabayn/gateway"
)

// MemoryStore is an in-memory Store. All methods are safe for
// concurrent use; DebitBalance is atomic under the store mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	prices   map[string]gateway.PriceEntry
	config   map[string]string
	balances map[string]float64
	usage    []gateway.UsageRecord
}

var _ gateway.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices:   make(map[string]gateway.PriceEntry),
		config:   make(map[string]string),
		balances: make(map[string]float64),
	}
}

// SetPrice upserts a price entry.
func (s *MemoryStore) SetPrice(entry gateway.PriceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[entry.Model] = entry
}

// SetConfig upserts a config value.
func (s *MemoryStore) SetConfig(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config[key] = value
}

// SetBalance overwrites a user's balance.
func (s *MemoryStore) SetBalance(userID string, balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = balance
}

// UsageRecords returns a copy of the appended usage history.
func (s *MemoryStore) UsageRecords() []gateway.UsageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]gateway.UsageRecord, len(s.usage))
	copy(out, s.usage)
	return out
}

func (s *MemoryStore) GetActivePrice(_ context.Context, model string) (gateway.PriceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.prices[model]
	if !ok || !entry.Active {
		return gateway.PriceEntry{}, gateway.ErrNotFound
	}
	return entry, nil
}

func (s *MemoryStore) GetConfig(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.config[key]
	if !ok {
		return "", gateway.ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) GetBalance(_ context.Context, userID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[userID], nil
}

// DebitBalance subtracts amount while holding the store lock: the check
// and the write are one atomic step, so concurrent debits cannot lose
// updates or drive the balance negative.
func (s *MemoryStore) DebitBalance(_ context.Context, userID string, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := s.balances[userID]
	if bal < amount {
		return bal, gateway.ErrInsufficientBalance
	}
	bal -= amount
	s.balances[userID] = bal
	return bal, nil
}

func (s *MemoryStore) AppendUsage(_ context.Context, rec gateway.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, rec)
	return nil
}
