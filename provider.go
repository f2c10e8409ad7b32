package gateway

import "context"

// Provider is the interface that upstream model adapters must implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "gemini", "openai").
	Name() string

	// Submit performs a single generation call. Implementations must
	// honor ctx cancellation; the gateway passes a per-call timeout.
	Submit(ctx context.Context, req ProviderRequest) (ProviderResponse, error)
}

// ProviderRequest is the request sent to a provider adapter.
type ProviderRequest struct {
	Model    string
	Prompt   string
	Image    []byte
	MimeType string
}

// ProviderResponse is the response from a provider adapter.
type ProviderResponse struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
}
