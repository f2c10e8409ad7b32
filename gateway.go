// Package gateway implements a metered, multi-provider AI generation
// core: it admits per-user requests under global and per-provider
// limits, executes them against upstream model providers with
// retry/fallback, computes a marked-up cost and debits the user's
// credit balance.
//
// All limiter, queue and throttle state is owned by a Gateway instance
// and is process-local: horizontally scaled instances each enforce
// their own caps, so effective global limits multiply with instance
// count. Only the balance lives in the shared Store, which must debit
// atomically.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Gateway is the generation service. Create one with New and release
// its workers with Close.
type Gateway struct {
	cfg       Config
	providers map[string]Provider
	store     Store
	meter     Meter

	admission *admissionGate
	queue     *dispatchQueue
	executor  *fallbackExecutor
	estimator *Estimator
	ledger    *Ledger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMeter sets the meter.
func WithMeter(m Meter) Option {
	return func(g *Gateway) { g.meter = m }
}

// New creates a Gateway with the given config, store and providers.
func New(cfg Config, store Store, providers []Provider, opts ...Option) (*Gateway, error) {
	if store == nil {
		return nil, fmt.Errorf("gateway: a store is required")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("gateway: at least one provider is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Limits.applyDefaults()

	provMap := make(map[string]Provider, len(providers))
	for _, p := range providers {
		provMap[p.Name()] = p
	}

	g := &Gateway{
		cfg:       cfg,
		providers: provMap,
		store:     store,
	}

	for _, opt := range opts {
		opt(g)
	}

	// Apply defaults after options.
	if g.meter == nil {
		g.meter = noopMeter{}
	}

	intervals := make(map[string]time.Duration, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		intervals[pc.Name] = pc.MinInterval.Std()
	}

	g.admission = newAdmissionGate(cfg.Limits.UserMinInterval.Std(), cfg.Limits.RateMapHighWater)
	g.queue = newDispatchQueue(cfg.Limits.ConcurrencyLimit, cfg.Limits.QueueDepth, cfg.Limits.QueueWaitTimeout.Std())
	g.executor = &fallbackExecutor{
		providers:   provMap,
		throttle:    newProviderThrottle(intervals),
		callTimeout: cfg.Limits.CallTimeout.Std(),
		jobDeadline: cfg.Limits.JobDeadline.Std(),
		meter:       g.meter,
	}
	g.estimator = NewEstimator(store, cfg.Limits.SafetyCapUSD, cfg.Limits.DefaultMarginPercent)
	g.ledger = NewLedger(store, cfg.Limits.FallbackCreditRate)

	return g, nil
}

// Close stops the worker pool after draining queued tasks.
func (g *Gateway) Close() {
	g.queue.Close()
}

// Submit runs one generation job end to end: admission, queueing,
// fallback execution, cost estimation and billing.
func (g *Gateway) Submit(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	if req.Model == "" {
		req.Model = g.cfg.DefaultModel
	}

	if !g.admission.Admit(req.UserID) {
		return GenerationResult{}, ErrRateLimited
	}

	// Balance precheck before any queue slot or upstream quota is
	// consumed. The authoritative check is the debit itself.
	balance, err := g.store.GetBalance(ctx, req.UserID)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("gateway: read balance: %w", err)
	}
	if balance <= 0 {
		return GenerationResult{}, ErrInsufficientBalance
	}

	chain := g.chainFor(req.Model)

	res, err := g.queue.Do(ctx, func() (attemptResult, error) {
		return g.executor.Execute(ctx, chain, req)
	})
	if err != nil {
		return GenerationResult{}, err
	}

	// Cost is resolved for the requested model, not the candidate that
	// happened to succeed.
	costUSD := g.estimator.Estimate(ctx, req.Model, res.InputTokens, res.OutputTokens)

	credits, balanceAfter, err := g.ledger.Charge(ctx, req.UserID, costUSD)
	if err != nil {
		return GenerationResult{}, err
	}

	usageErr := g.store.AppendUsage(ctx, UsageRecord{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		RequestedModel: req.Model,
		UsedModel:      res.UsedModel,
		InputTokens:    res.InputTokens,
		OutputTokens:   res.OutputTokens,
		CostUSD:        costUSD,
		Timestamp:      time.Now().UTC(),
	})

	g.meter.OnBilling(BillingEvent{
		UserID:         req.UserID,
		RequestedModel: req.Model,
		UsedModel:      res.UsedModel,
		CostUSD:        costUSD,
		Credits:        credits,
		BalanceAfter:   balanceAfter,
		UsageErr:       usageErr,
	})

	return GenerationResult{
		Content:        res.Content,
		RequestedModel: req.Model,
		UsedModel:      res.UsedModel,
		InputTokens:    res.InputTokens,
		OutputTokens:   res.OutputTokens,
		CostUSD:        costUSD,
		CreditsCharged: credits,
		BalanceAfter:   balanceAfter,
		Attempts:       res.Attempts,
	}, nil
}

// chainFor returns the ordered candidate list for a requested model.
// Models without a configured chain get a single-candidate chain; the
// state machine downstream stays fully general.
func (g *Gateway) chainFor(model string) []string {
	for _, f := range g.cfg.Fallbacks {
		if f.Model == model {
			return f.Candidates
		}
	}
	return []string{model}
}
