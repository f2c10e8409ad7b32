package gateway

import "strings"

// ProviderID enumerates the known upstream providers.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderGemini    ProviderID = "gemini"
	ProviderAnthropic ProviderID = "anthropic"
)

// modelProviders maps known model ids to their provider. Unlisted
// models fall through to providerMatchers.
var modelProviders = map[string]ProviderID{
	"gpt-4.1":          ProviderOpenAI,
	"gpt-4o":           ProviderOpenAI,
	"gpt-4o-mini":      ProviderOpenAI,
	"gpt-4-turbo":      ProviderOpenAI,
	"o1":               ProviderOpenAI,
	"o3":               ProviderOpenAI,
	"o4-mini":          ProviderOpenAI,
	"gemini-2.5-pro":   ProviderGemini,
	"gemini-2.5-flash": ProviderGemini,
	"gemini-2.5-flash-lite": ProviderGemini,
	"gemini-2.0-pro":        ProviderGemini,
	"gemini-2.0-flash":      ProviderGemini,
	"gemini-2.0-flash-exp":  ProviderGemini,
	"gemini-2.0-flash-lite": ProviderGemini,
	"gemini-1.5-pro":        ProviderGemini,
	"gemini-1.5-flash":      ProviderGemini,
	"gemini-1.5-flash-8b":   ProviderGemini,
	"gemini-pro":            ProviderGemini,
}

// providerMatchers infer a provider from the model name when the model
// is not in the static table. Evaluated in order.
var providerMatchers = []struct {
	prefix string
	id     ProviderID
}{
	{"gemini", ProviderGemini},
	{"claude", ProviderAnthropic},
}

// ResolveProvider maps a model id to its provider. Unknown families
// default to OpenAI, matching the upstream request format most
// aggregators accept.
func ResolveProvider(model string) ProviderID {
	if id, ok := modelProviders[model]; ok {
		return id
	}
	for _, m := range providerMatchers {
		if strings.HasPrefix(model, m.prefix) {
			return m.id
		}
	}
	return ProviderOpenAI
}
