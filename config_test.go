package gateway_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metabayn/gateway"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_DEFAULT_MODEL", "gemini-2.0-flash")

	path := writeConfig(t, `
default_model: ${TEST_DEFAULT_MODEL}
fallbacks:
  - model: gemini-2.0-flash
    candidates: [gemini-2.0-flash, gemini-1.5-flash, gpt-4o-mini]
providers:
  - name: gemini
    min_interval: 250ms
  - name: openai
    min_interval: 1s
limits:
  concurrency_limit: 10
  queue_wait_timeout: 2m
  user_min_interval: 100ms
  safety_cap_usd: 0.50
`)

	cfg, err := gateway.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.DefaultModel)

	require.Len(t, cfg.Fallbacks, 1)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-flash", "gpt-4o-mini"}, cfg.Fallbacks[0].Candidates)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, 250*time.Millisecond, cfg.Providers[0].MinInterval.Std())
	assert.Equal(t, time.Second, cfg.Providers[1].MinInterval.Std())

	assert.Equal(t, 10, cfg.Limits.ConcurrencyLimit)
	assert.Equal(t, 2*time.Minute, cfg.Limits.QueueWaitTimeout.Std())
	assert.Equal(t, 0.50, cfg.Limits.SafetyCapUSD)
}

func TestLoadConfig_BadDuration(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: gemini
    min_interval: quarter-second
`)
	_, err := gateway.LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := gateway.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     gateway.Config
		wantErr string
	}{
		{
			name: "duplicate fallback chain",
			cfg: gateway.Config{
				Fallbacks: []gateway.FallbackChain{
					{Model: "m", Candidates: []string{"m"}},
					{Model: "m", Candidates: []string{"m"}},
				},
			},
			wantErr: "duplicate fallback chain",
		},
		{
			name: "chain without candidates",
			cfg: gateway.Config{
				Fallbacks: []gateway.FallbackChain{{Model: "m"}},
			},
			wantErr: "at least one candidate",
		},
		{
			name: "chain without model",
			cfg: gateway.Config{
				Fallbacks: []gateway.FallbackChain{{Candidates: []string{"m"}}},
			},
			wantErr: "model is required",
		},
		{
			name: "duplicate provider",
			cfg: gateway.Config{
				Providers: []gateway.ProviderConfig{{Name: "gemini"}, {Name: "gemini"}},
			},
			wantErr: "duplicate provider",
		},
		{
			name: "negative provider interval",
			cfg: gateway.Config{
				Providers: []gateway.ProviderConfig{
					{Name: "gemini", MinInterval: gateway.Duration(-time.Second)},
				},
			},
			wantErr: "must not be negative",
		},
		{
			name: "valid",
			cfg: gateway.Config{
				DefaultModel: "gemini-2.0-flash",
				Fallbacks: []gateway.FallbackChain{
					{Model: "gemini-2.0-flash", Candidates: []string{"gemini-2.0-flash"}},
				},
				Providers: []gateway.ProviderConfig{{Name: "gemini"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
