// Package gemini is the Gemini adapter. It talks to the AI Studio API
// with an API key, or to Vertex AI with a bearer token when a token
// source is configured. Vertex calls that fail with 404 (or a
// "Publisher Model" 400) fall back to the AI Studio endpoint, which
// covers preview-only and region-restricted models.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/metabayn/gateway"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider is the Gemini adapter.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Vertex AI settings; the Vertex path is used when tokens != nil.
	tokens    TokenSource
	projectID string
	location  string
}

var _ gateway.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom AI Studio base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithVertex routes calls through Vertex AI using the given token
// source and project. Location defaults to us-central1 when empty.
func WithVertex(tokens TokenSource, projectID, location string) Option {
	return func(p *Provider) {
		p.tokens = tokens
		p.projectID = projectID
		if location == "" {
			location = "us-central1"
		}
		p.location = location
	}
}

// New creates a new Gemini provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "gemini" }

// normalizeModel maps aliases onto the ids the API actually serves.
func normalizeModel(model string) string {
	switch model {
	case "gemini-2.0-flash-lite":
		return "gemini-2.0-flash-lite-preview-02-05"
	case "gemini-flash":
		return "gemini-1.5-flash"
	}
	return model
}

// Gemini API types. The AI Studio and Vertex response shapes match.
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) Submit(ctx context.Context, req gateway.ProviderRequest) (gateway.ProviderResponse, error) {
	model := normalizeModel(req.Model)
	body := buildRequest(req)

	var httpResp *http.Response
	var err error
	if p.tokens != nil {
		httpResp, err = p.doVertex(ctx, model, body)
	} else {
		httpResp, err = p.doStudio(ctx, model, body)
	}
	if err != nil {
		if ctx.Err() != nil {
			return gateway.ProviderResponse{}, ctx.Err()
		}
		return gateway.ProviderResponse{}, err
	}
	defer httpResp.Body.Close()

	var resp geminiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return gateway.ProviderResponse{}, &gateway.StatusError{Message: fmt.Sprintf("decode response: %v", err)}
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := "provider error"
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return gateway.ProviderResponse{}, &gateway.StatusError{Status: httpResp.StatusCode, Message: msg}
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback.BlockReason != "" {
			return gateway.ProviderResponse{}, fmt.Errorf("%w: %s", gateway.ErrBlocked, resp.PromptFeedback.BlockReason)
		}
		return gateway.ProviderResponse{}, gateway.ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT":
		return gateway.ProviderResponse{}, fmt.Errorf("%w: %s", gateway.ErrBlocked, candidate.FinishReason)
	}

	if len(candidate.Content.Parts) == 0 || candidate.Content.Parts[0].Text == "" {
		return gateway.ProviderResponse{}, fmt.Errorf("%w (finish reason: %s)", gateway.ErrEmptyResponse, candidate.FinishReason)
	}

	content := candidate.Content.Parts[0].Text
	in := resp.UsageMetadata.PromptTokenCount
	out := resp.UsageMetadata.CandidatesTokenCount
	if in == 0 {
		in = gateway.EstimateTokens(req.Prompt)
	}
	if out == 0 {
		out = gateway.EstimateTokens(content)
	}

	return gateway.ProviderResponse{
		Content:      content,
		InputTokens:  in,
		OutputTokens: out,
	}, nil
}

// doStudio calls the AI Studio endpoint with the API key.
func (p *Provider) doStudio(ctx context.Context, model string, body geminiRequest) (*http.Response, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)
	return p.post(ctx, url, "", body)
}

// doVertex calls the Vertex AI endpoint with a bearer token, falling
// back to AI Studio on 404 or a "Publisher Model" 400.
func (p *Provider) doVertex(ctx context.Context, model string, body geminiRequest) (*http.Response, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, &gateway.StatusError{Message: fmt.Sprintf("vertex token: %v", err)}
	}

	url := fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		p.location, p.projectID, p.location, model)

	resp, err := p.post(ctx, url, token, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound || strings.Contains(string(errText), "Publisher Model") {
			return p.doStudio(ctx, model, body)
		}
		return nil, &gateway.StatusError{Status: resp.StatusCode, Message: string(errText)}
	}

	return resp, nil
}

func (p *Provider) post(ctx context.Context, url, bearer string, body geminiRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, &gateway.StatusError{Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &gateway.StatusError{Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &gateway.StatusError{Message: err.Error()}
	}
	return resp, nil
}

func buildRequest(req gateway.ProviderRequest) geminiRequest {
	prompt := req.Prompt
	if prompt == "" {
		prompt = "Describe this image"
	}

	parts := []geminiPart{{Text: prompt}}
	if len(req.Image) > 0 {
		mime := req.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: mime,
				Data:     encodeBase64(req.Image),
			},
		})
	}

	return geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}
}
