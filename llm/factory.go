// Provider construction.
//
//	provider, err := llm.ProviderAnthropic.
//	    Model(settings.LLM.Model).
//	    MaxTokens(4096).
//	    Temperature(0.2).
//	    APIKey(key)
//
// Information Hiding:
// - SDK client options per provider hidden
// - Default model and sampling values hidden

package llm

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"
)

// ProviderType identifies a model vendor.
type ProviderType int

const (
	ProviderOpenAI ProviderType = iota
	ProviderAnthropic
	ProviderDeepSeek
	ProviderGemini
)

// Default models, chosen for tool-calling reliability over raw capability.
const (
	ModelOpenAIGPT4o            = "gpt-4o"
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelDeepSeekChat           = "deepseek-chat"
	ModelGeminiFlash25          = "gemini-2.5-flash"
)

const (
	defaultMaxTokens   = 4096
	defaultTemperature = 0.2
)

var providerNames = map[ProviderType]string{
	ProviderOpenAI:    "openai",
	ProviderAnthropic: "anthropic",
	ProviderDeepSeek:  "deepseek",
	ProviderGemini:    "gemini",
}

func (p ProviderType) String() string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return "unknown"
}

// DefaultModel is used when no model is configured.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return ModelOpenAIGPT4o
	case ProviderAnthropic:
		return ModelAnthropicClaudeSonnet4
	case ProviderDeepSeek:
		return ModelDeepSeekChat
	case ProviderGemini:
		return ModelGeminiFlash25
	}
	return ""
}

// ParseProviderType accepts a provider name or alias, case-insensitively.
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	}
	return 0, fmt.Errorf("unknown provider: %s", s)
}

// Model starts a builder for p with model. An empty model keeps the default.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return &ProviderBuilder{providerType: p, model: model}
}

// APIKey builds p with all defaults.
func (p ProviderType) APIKey(key string) (Provider, error) {
	return p.Model("").APIKey(key)
}

// ProviderBuilder collects provider options.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	maxTokens    uint32
	temperature  *float32
	baseURL      string
}

func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// BaseURL points the provider at a proxy or a compatible server. Gemini
// ignores it.
func (b *ProviderBuilder) BaseURL(url string) *ProviderBuilder {
	b.baseURL = url
	return b
}

// APIKey builds the provider. An empty key is an error for every vendor.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	if key == "" {
		return nil, fmt.Errorf("%s: missing API key", b.providerType)
	}

	model := b.model
	if model == "" {
		model = b.providerType.DefaultModel()
	}
	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := float32(defaultTemperature)
	if b.temperature != nil {
		temperature = *b.temperature
	}

	switch b.providerType {
	case ProviderOpenAI:
		if b.baseURL == "" {
			return NewOpenAIProvider(key, model, maxTokens, temperature), nil
		}
		return NewOpenAICompatibleProvider("openai", key, b.baseURL, model, maxTokens, temperature), nil
	case ProviderAnthropic:
		var opts []option.RequestOption
		if b.baseURL != "" {
			opts = append(opts, option.WithBaseURL(b.baseURL))
		}
		return NewAnthropicProvider(key, model, maxTokens, temperature, opts...), nil
	case ProviderDeepSeek:
		if b.baseURL == "" {
			return NewDeepSeekProvider(key, model, maxTokens, temperature), nil
		}
		return NewOpenAICompatibleProvider("deepseek", key, b.baseURL, model, maxTokens, temperature), nil
	case ProviderGemini:
		return NewGeminiProvider(key, model, maxTokens, temperature), nil
	}
	return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
}
