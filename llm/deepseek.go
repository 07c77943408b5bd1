package llm

const deepseekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekProvider creates a provider for DeepSeek's OpenAI-compatible API.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return NewOpenAICompatibleProvider("deepseek", apiKey, deepseekBaseURL, model, maxTokens, temperature)
}
