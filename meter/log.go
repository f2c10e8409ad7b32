package meter

import (
	"log/slog"

	"github.com/metabayn/gateway"
)

// LogMeter logs gateway events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ gateway.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnAttempt(e gateway.AttemptEvent) {
	m.Logger.Info("attempt",
		"user", e.UserID,
		"provider", e.Provider,
		"model", e.Model,
		"attempt", e.Attempt,
	)
}

func (m *LogMeter) OnResult(e gateway.ResultEvent) {
	if e.Err == nil {
		m.Logger.Info("result",
			"user", e.UserID,
			"provider", e.Provider,
			"model", e.Model,
			"attempt", e.Attempt,
			"duration_ms", e.Duration.Milliseconds(),
			"input_tokens", e.InputTokens,
			"output_tokens", e.OutputTokens,
		)
	} else {
		m.Logger.Warn("result_error",
			"user", e.UserID,
			"provider", e.Provider,
			"model", e.Model,
			"attempt", e.Attempt,
			"duration_ms", e.Duration.Milliseconds(),
			"error", e.Err,
		)
	}
}

func (m *LogMeter) OnBilling(e gateway.BillingEvent) {
	m.Logger.Info("billing",
		"user", e.UserID,
		"requested_model", e.RequestedModel,
		"used_model", e.UsedModel,
		"cost_usd", e.CostUSD,
		"credits", e.Credits,
		"balance_after", e.BalanceAfter,
	)
	if e.UsageErr != nil {
		m.Logger.Warn("usage_record_failed",
			"user", e.UserID,
			"error", e.UsageErr,
		)
	}
}
