package gateway

import (
	"context"
	"fmt"
	"time"
)

// attemptResult is what a successful provider call yields.
type attemptResult struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
	UsedModel    string
	Attempts     int
}

// fallbackExecutor drives a candidate-model chain against the provider
// adapters under a whole-job deadline.
//
// For each candidate in order: check the job deadline, resolve the
// provider, wait for the throttle, call the adapter under the per-call
// timeout. Retryable failures move to the next candidate; fatal
// failures abort the chain, since the same input would fail identically
// everywhere.
type fallbackExecutor struct {
	providers   map[string]Provider
	throttle    *providerThrottle
	callTimeout time.Duration
	jobDeadline time.Duration
	meter       Meter
}

func (e *fallbackExecutor) Execute(ctx context.Context, chain []string, req GenerationRequest) (attemptResult, error) {
	start := time.Now()
	var lastErr error

	for i, model := range chain {
		// The deadline is checked only at candidate boundaries; an
		// in-flight call is bounded by callTimeout, not the deadline.
		if time.Since(start) > e.jobDeadline {
			return attemptResult{}, ErrJobTimeout
		}
		if ctx.Err() != nil {
			return attemptResult{}, ctx.Err()
		}

		providerName := string(ResolveProvider(model))
		prov, ok := e.providers[providerName]
		if !ok {
			lastErr = &GatewayError{Err: ErrUnknownProvider, Provider: providerName, Model: model, Attempts: i + 1}
			continue
		}

		if err := e.throttle.Wait(ctx, providerName); err != nil {
			return attemptResult{}, err
		}

		e.meter.OnAttempt(AttemptEvent{
			UserID:   req.UserID,
			Provider: providerName,
			Model:    model,
			Attempt:  i + 1,
		})

		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		callStart := time.Now()
		resp, err := prov.Submit(callCtx, ProviderRequest{
			Model:    model,
			Prompt:   req.Prompt,
			Image:    req.Image,
			MimeType: req.MimeType,
		})
		cancel()
		duration := time.Since(callStart)

		if err != nil {
			e.meter.OnResult(ResultEvent{
				UserID:   req.UserID,
				Provider: providerName,
				Model:    model,
				Attempt:  i + 1,
				Duration: duration,
				Err:      err,
			})
			if IsFatal(err) {
				return attemptResult{}, &GatewayError{Err: err, Provider: providerName, Model: model, Attempts: i + 1}
			}
			lastErr = err
			continue
		}

		e.meter.OnResult(ResultEvent{
			UserID:       req.UserID,
			Provider:     providerName,
			Model:        model,
			Attempt:      i + 1,
			Duration:     duration,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
		})

		return attemptResult{
			Content:      resp.Content,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			UsedModel:    model,
			Attempts:     i + 1,
		}, nil
	}

	err := ErrAllBusy
	if lastErr != nil {
		err = fmt.Errorf("%w: last failure: %v", ErrAllBusy, lastErr)
	}
	return attemptResult{}, &GatewayError{
		Err:      err,
		Model:    req.Model,
		Attempts: len(chain),
	}
}
