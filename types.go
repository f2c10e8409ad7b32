package gateway

import "time"

// GenerationRequest is one user generation job, created at the system
// boundary. The struct is treated as immutable once submitted.
type GenerationRequest struct {
	UserID   string
	Model    string
	Prompt   string
	Image    []byte // optional inline image, raw bytes
	MimeType string // mime type of Image, e.g. "image/jpeg"
}

// GenerationResult is the caller-facing outcome of a billed job.
type GenerationResult struct {
	Content        string
	RequestedModel string
	UsedModel      string // may differ from RequestedModel after fallback
	InputTokens    int64
	OutputTokens   int64
	CostUSD        float64
	CreditsCharged float64
	BalanceAfter   float64
	Attempts       int
}

// PriceEntry is a per-model price row, managed by an external admin
// surface and read-only here. Rates are USD per one million tokens.
type PriceEntry struct {
	Model            string
	InputPerMTok     float64
	OutputPerMTok    float64
	ProfitMultiplier float64
	Active           bool
}

// UsageRecord is one append-only billing history row, written once per
// successfully billed job.
type UsageRecord struct {
	ID             string
	UserID         string
	RequestedModel string
	UsedModel      string
	InputTokens    int64
	OutputTokens   int64
	CostUSD        float64
	Timestamp      time.Time
}
