package meter

import "github.com/metabayn/gateway"

// NoopMeter discards all events.
type NoopMeter struct{}

var _ gateway.Meter = (*NoopMeter)(nil)

func (*NoopMeter) OnAttempt(gateway.AttemptEvent) {}
func (*NoopMeter) OnResult(gateway.ResultEvent)   {}
func (*NoopMeter) OnBilling(gateway.BillingEvent) {}
