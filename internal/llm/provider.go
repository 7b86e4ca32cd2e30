package llm

import (
	"fmt"
	"net/http"
)

// ProviderKind selects the wire format of the summarizer endpoint
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider adapts one vendor API.
type Provider interface {
	Kind() ProviderKind

	// BuildURL constructs the full API endpoint URL.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific authentication headers.
	SetHeaders(req *http.Request, apiKey string)

	BuildRequestBody(model string, messages []Message, maxTokens int) ([]byte, error)

	// ParseResponse extracts the generated text.
	ParseResponse(body []byte) (string, error)
}

// providers is the lookup table resolved by NewClient
var providers = map[ProviderKind]Provider{
	ProviderOpenAI:    openAIProvider{},
	ProviderAnthropic: anthropicProvider{},
}

// ProviderFor returns the adapter for kind
func ProviderFor(kind ProviderKind) (Provider, error) {
	p, ok := providers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown summarizer provider: %q", kind)
	}
	return p, nil
}
