// Package openai is the OpenAI chat-completions adapter. It supports
// plain text prompts and inline images sent as data-URL parts.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/metabayn/gateway"
)

const defaultBaseURL = "https://api.openai.com/v1"

// maxPromptChars bounds the text part of an image request; anything
// longer is truncated to its head with a marker appended.
const maxPromptChars = 50000

// Provider is the OpenAI API adapter.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ gateway.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a new OpenAI provider.
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

func (p *Provider) Name() string { return "openai" }

// OpenAI API types.
type apiRequest struct {
	Model    string       `json:"model"`
	Messages []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or []apiPart for image requests
}

type apiPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *apiImageURL `json:"image_url,omitempty"`
}

type apiImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
}

func (p *Provider) Submit(ctx context.Context, req gateway.ProviderRequest) (gateway.ProviderResponse, error) {
	body := apiRequest{
		Model:    req.Model,
		Messages: []apiMessage{buildMessage(req)},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return gateway.ProviderResponse{}, &gateway.StatusError{Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return gateway.ProviderResponse{}, &gateway.StatusError{Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return gateway.ProviderResponse{}, ctx.Err()
		}
		return gateway.ProviderResponse{}, &gateway.StatusError{Message: err.Error()}
	}
	defer httpResp.Body.Close()

	var resp apiResponse
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

	if len(resp.Choices) == 0 {
		return gateway.ProviderResponse{}, gateway.ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	in := resp.Usage.PromptTokens
	out := resp.Usage.CompletionTokens
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

func buildMessage(req gateway.ProviderRequest) apiMessage {
	if len(req.Image) == 0 {
		return apiMessage{Role: "user", Content: req.Prompt}
	}

	text := req.Prompt
	if text == "" {
		text = "Describe this image"
	}
	if len(text) > maxPromptChars {
		text = text[:1000] + "... [TRUNCATED]"
	}

	mime := req.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(req.Image))

	return apiMessage{
		Role: "user",
		Content: []apiPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &apiImageURL{URL: dataURL, Detail: "low"}},
		},
	}
}
