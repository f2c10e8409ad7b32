package gateway_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metabayn/gateway"
	"github.com/metabayn/gateway/store"
)

func TestLedger_MinimumOneCreditCharge(t *testing.T) {
	s := store.NewMemoryStore()
	s.SetBalance("u1", 10)
	s.SetConfig(gateway.ConfigKeyCreditRate, "1") // 1 credit per USD

	l := gateway.NewLedger(s, gateway.DefaultFallbackCreditRate)

	// 0.0005 credits computed; the floor charges 1.
	credits, after, err := l.Charge(context.Background(), "u1", 0.0005)
	require.NoError(t, err)
	assert.Equal(t, 1.0, credits)
	assert.Equal(t, 9.0, after)
}

func TestLedger_ConvertsWithConfiguredRate(t *testing.T) {
	s := store.NewMemoryStore()
	s.SetBalance("u1", 100_000)
	s.SetConfig(gateway.ConfigKeyCreditRate, "16000")

	l := gateway.NewLedger(s, gateway.DefaultFallbackCreditRate)

	credits, after, err := l.Charge(context.Background(), "u1", 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 4000, credits, 1e-9)
	assert.InDelta(t, 96_000, after, 1e-9)
}

func TestLedger_FallbackRateWhenUnconfigured(t *testing.T) {
	s := store.NewMemoryStore()
	s.SetBalance("u1", 100_000)

	l := gateway.NewLedger(s, 10_000)

	credits, _, err := l.Charge(context.Background(), "u1", 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 1000, credits, 1e-9)
}

func TestLedger_RefusesOverdraft(t *testing.T) {
	s := store.NewMemoryStore()
	s.SetBalance("u1", 0.5)
	s.SetConfig(gateway.ConfigKeyCreditRate, "1")

	l := gateway.NewLedger(s, gateway.DefaultFallbackCreditRate)

	_, _, err := l.Charge(context.Background(), "u1", 0.25)
	assert.ErrorIs(t, err, gateway.ErrInsufficientBalance)
}

// TestDebit_LostUpdate contrasts a naive read-modify-write against the
// store's atomic debit. The interleaved naive sequence loses an update;
// the atomic debit never does.
func TestDebit_LostUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("naive read-modify-write loses an update", func(t *testing.T) {
		s := store.NewMemoryStore()
		s.SetBalance("u1", 1000)

		// Two debits read the balance before either writes: the second
		// write clobbers the first.
		b1, err := s.GetBalance(ctx, "u1")
		require.NoError(t, err)
		b2, err := s.GetBalance(ctx, "u1")
		require.NoError(t, err)
		s.SetBalance("u1", b1-1)
		s.SetBalance("u1", b2-1)

		final, err := s.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 999.0, final) // one debit lost; should be 998
	})

	t.Run("atomic debit keeps every update", func(t *testing.T) {
		s := store.NewMemoryStore()
		s.SetBalance("u1", 1000)

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.DebitBalance(ctx, "u1", 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		final, err := s.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 900.0, final)
	})
}
