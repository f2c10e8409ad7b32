package gateway

import "time"

// Meter observes gateway events for monitoring/logging.
type Meter interface {
	// OnAttempt is called before each fallback candidate is tried.
	OnAttempt(event AttemptEvent)

	// OnResult is called when a provider call returns.
	OnResult(event ResultEvent)

	// OnBilling is called after a job has been billed.
	OnBilling(event BillingEvent)
}

// AttemptEvent describes one fallback-candidate attempt.
type AttemptEvent struct {
	UserID   string
	Provider string
	Model    string
	Attempt  int
}

// ResultEvent describes the outcome of a provider call.
type ResultEvent struct {
	UserID       string
	Provider     string
	Model        string
	Attempt      int
	Duration     time.Duration
	InputTokens  int64
	OutputTokens int64
	Err          error
}

// BillingEvent describes the billing outcome of a finished job.
// UsageErr carries a failed history append; the append is best effort
// and never fails the job.
type BillingEvent struct {
	UserID         string
	RequestedModel string
	UsedModel      string
	CostUSD        float64
	Credits        float64
	BalanceAfter   float64
	UsageErr       error
}

// noopMeter is the default meter; it does nothing.
type noopMeter struct{}

func (noopMeter) OnAttempt(AttemptEvent) {}
func (noopMeter) OnResult(ResultEvent)   {}
func (noopMeter) OnBilling(BillingEvent) {}
