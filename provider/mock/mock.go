// Package mock provides a configurable in-memory provider for tests.
package mock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/metabayn/gateway"
)

// Provider is a mock upstream adapter.
type Provider struct {
	name         string
	latency      time.Duration
	staticErr    error
	inputTokens  int64
	outputTokens int64
	content      string
	responseFunc func(gateway.ProviderRequest) (gateway.ProviderResponse, error)

	callCount atomic.Int64
	inFlight  atomic.Int64
	maxSeen   atomic.Int64
}

var _ gateway.Provider = (*Provider)(nil)

// Option configures a mock Provider.
type Option func(*Provider)

// New creates a mock provider with the given options.
func New(opts ...Option) *Provider {
	p := &Provider{
		name:         "mock",
		content:      "Hello from mock provider",
		inputTokens:  10,
		outputTokens: 20,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithName sets the provider name.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(p *Provider) { p.latency = d }
}

// WithError makes the provider always return this error.
func WithError(err error) Option {
	return func(p *Provider) { p.staticErr = err }
}

// WithContent sets the returned content.
func WithContent(content string) Option {
	return func(p *Provider) { p.content = content }
}

// WithUsage sets the token counts returned by the mock.
func WithUsage(input, output int64) Option {
	return func(p *Provider) {
		p.inputTokens = input
		p.outputTokens = output
	}
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(gateway.ProviderRequest) (gateway.ProviderResponse, error)) Option {
	return func(p *Provider) { p.responseFunc = fn }
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Submit(ctx context.Context, req gateway.ProviderRequest) (gateway.ProviderResponse, error) {
	p.callCount.Add(1)

	in := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		max := p.maxSeen.Load()
		if in <= max || p.maxSeen.CompareAndSwap(max, in) {
			break
		}
	}

	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return gateway.ProviderResponse{}, ctx.Err()
		}
	}

	if p.staticErr != nil {
		return gateway.ProviderResponse{}, p.staticErr
	}

	if p.responseFunc != nil {
		return p.responseFunc(req)
	}

	return gateway.ProviderResponse{
		Content:      p.content,
		InputTokens:  p.inputTokens,
		OutputTokens: p.outputTokens,
	}, nil
}

// CallCount returns the number of calls made to the provider.
func (p *Provider) CallCount() int64 { return p.callCount.Load() }

// MaxConcurrent returns the highest number of simultaneous in-flight
// calls observed.
func (p *Provider) MaxConcurrent() int64 { return p.maxSeen.Load() }
