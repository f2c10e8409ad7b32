package gateway

// EstimateTokens provides a rough token count for a piece of text.
// Uses the approximation: ~4 chars per token + a small base overhead.
// Adapters fall back to it when a provider omits usage metadata.
func EstimateTokens(text string) int64 {
	return int64(len(text))/4 + 3
}
