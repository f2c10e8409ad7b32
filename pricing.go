package gateway

import (
	"context"
	"strconv"
	"strings"
)

// Price is a USD rate pair per one million tokens.
type Price struct {
	Input  float64
	Output float64
}

// safePrices is the static fallback price table, USD per 1M tokens.
// It shields billing from a corrupted or unreachable price store.
var safePrices = map[string]Price{
	"gemini-2.0-flash-lite":               {Input: 0.075, Output: 0.30},
	"gemini-2.0-flash-lite-preview-02-05": {Input: 0.075, Output: 0.30},
	"gemini-1.5-flash-8b":                 {Input: 0.0375, Output: 0.15},

	"gemini-2.0-flash":     {Input: 0.10, Output: 0.40},
	"gemini-2.0-flash-exp": {Input: 0.10, Output: 0.40},

	"gemini-1.5-flash":     {Input: 0.075, Output: 0.30},
	"gemini-1.5-flash-001": {Input: 0.075, Output: 0.30},
	"gemini-1.5-flash-002": {Input: 0.075, Output: 0.30},

	"gemini-1.5-pro": {Input: 3.50, Output: 10.50},
	"gemini-2.0-pro": {Input: 3.50, Output: 10.50},
	"gemini-pro":     {Input: 0.50, Output: 1.50},

	"gemini-2.5-pro":        {Input: 1.25, Output: 10.00},
	"gemini-2.5-flash":      {Input: 0.30, Output: 2.50},
	"gemini-2.5-flash-lite": {Input: 0.10, Output: 0.40},
	"gemini-2.5-ultra":      {Input: 2.50, Output: 12.00},
	"gemini-2.0-ultra":      {Input: 2.50, Output: 12.00},

	"gpt-4o":      {Input: 2.50, Output: 10.00},
	"gpt-4o-mini": {Input: 0.15, Output: 0.60},
	"gpt-4.1":     {Input: 2.50, Output: 10.00},
	"gpt-4.1-mini": {Input: 0.15, Output: 0.60},
	"gpt-4-turbo":  {Input: 10.00, Output: 30.00},
	"gpt-5.1":      {Input: 15.00, Output: 60.00},
	"gpt-5.1-mini": {Input: 3.00, Output: 12.00},
	"o1":           {Input: 15.00, Output: 60.00},
	"o3":           {Input: 20.00, Output: 80.00},
	"o4-mini":      {Input: 0.50, Output: 2.00},
}

// defaultPrice is the flat tier charged when a model matches nothing.
var defaultPrice = Price{Input: 0.10, Output: 0.40}

// tierMatchers map an unlisted model name onto a representative price
// tier. Evaluated in order: more specific fragments first.
var tierMatchers = []struct {
	match func(model string) bool
	tier  string
}{
	{func(m string) bool { return strings.Contains(m, "flash-lite") || strings.Contains(m, "8b") }, "gemini-2.0-flash-lite"},
	{func(m string) bool {
		return strings.Contains(m, "flash") &&
			(strings.Contains(m, "1.5") || strings.Contains(m, "001") || strings.Contains(m, "002"))
	}, "gemini-1.5-flash"},
	{func(m string) bool { return strings.Contains(m, "flash") }, "gemini-2.0-flash"},
	{func(m string) bool { return strings.Contains(m, "mini") }, "gpt-4o-mini"},
	{func(m string) bool { return strings.Contains(m, "ultra") }, "gemini-2.5-ultra"},
	{func(m string) bool { return strings.Contains(m, "pro") }, "gemini-1.5-pro"},
	{func(m string) bool { return strings.Contains(m, "gpt-4o") || strings.Contains(m, "gpt-4.1") }, "gpt-4o"},
	{func(m string) bool {
		return strings.Contains(m, "gpt-5") || strings.Contains(m, "o1") || strings.Contains(m, "o3")
	}, "gpt-5.1"},
}

// Estimator resolves a final marked-up USD cost for a finished job.
// Estimation never fails: every lookup degrades to a static fallback,
// because by the time it runs the expensive generation has already
// happened.
type Estimator struct {
	store         Store
	safetyCapUSD  float64
	defaultMargin float64 // percent
}

// NewEstimator creates an Estimator.
func NewEstimator(store Store, safetyCapUSD, defaultMarginPercent float64) *Estimator {
	return &Estimator{
		store:         store,
		safetyCapUSD:  safetyCapUSD,
		defaultMargin: defaultMarginPercent,
	}
}

// Estimate computes the charged USD cost for the given token counts.
// The price is always resolved for the model the user requested, even
// when a fallback candidate produced the output.
func (e *Estimator) Estimate(ctx context.Context, model string, inputTokens, outputTokens int64) float64 {
	price := e.resolvePrice(ctx, model)

	raw := float64(inputTokens)/1e6*price.Input + float64(outputTokens)/1e6*price.Output
	final := raw * e.multiplier(ctx)

	// Absolute ceiling per request; bounds the blast radius of a
	// pricing error or a runaway token count.
	if final > e.safetyCapUSD {
		final = e.safetyCapUSD
	}
	return final
}

// resolvePrice resolves the unit price in order: active store entry,
// static safe table, tier matcher, flat default.
func (e *Estimator) resolvePrice(ctx context.Context, model string) Price {
	if entry, err := e.store.GetActivePrice(ctx, model); err == nil && entry.Active {
		return Price{Input: entry.InputPerMTok, Output: entry.OutputPerMTok}
	}

	if p, ok := safePrices[model]; ok {
		return p
	}

	for _, tm := range tierMatchers {
		if tm.match(model) {
			return safePrices[tm.tier]
		}
	}

	return defaultPrice
}

// multiplier reads the global margin percent from the store, falling
// back to the default. Per-entry multipliers are ignored in favor of
// the global setting.
func (e *Estimator) multiplier(ctx context.Context) float64 {
	margin := e.defaultMargin
	if raw, err := e.store.GetConfig(ctx, ConfigKeyProfitMargin); err == nil {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
			margin = v
		}
	}
	return 1 + margin/100
}
