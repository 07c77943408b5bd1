// Analysis wiring for CLI commands.
//
// Information Hiding:
// - Provider construction from settings hidden
// - Driver and classifier assembly hidden
// - History service and tool registry construction hidden

package cli

import (
	"fmt"

	"github.com/richinex/patchscout/agent"
	"github.com/richinex/patchscout/config"
	"github.com/richinex/patchscout/history"
	"github.com/richinex/patchscout/llm"
	"github.com/richinex/patchscout/tools"
	"github.com/richinex/patchscout/vcs"
)

// newHistory creates the history service for the configured checkout. The
// caches are process-wide so repeated commands in one process share them.
func newHistory(settings config.Settings) *history.Service {
	runner := vcs.NewShellRunner(settings.Analysis.CommandTimeout)
	return history.NewService(runner, settings.Repo.ChromiumRoot, settings.Repo.OutDir,
		history.SharedCaches(settings.Cache))
}

func toolConfig(settings config.Settings) tools.ToolConfig {
	return tools.ToolConfig{
		TimeoutSecs: uint64(settings.Analysis.CommandTimeout.Seconds()),
		PageSize:    settings.Analysis.PageSize,
	}
}

func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		BaseURL(settings.LLM.BaseURL).
		APIKey(apiKey)
}

// newDriver assembles the conversation driver over registry.
func newDriver(settings config.Settings, provider llm.Provider, registry *tools.Registry) (*agent.Driver, error) {
	driver, err := agent.NewBuilder(provider).
		Registry(registry).
		ToolConfig(toolConfig(settings)).
		MaxRounds(settings.Analysis.MaxRounds).
		PromptTokenBudget(settings.LLM.PromptTokenBudget).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build driver: %w", err)
	}
	return driver, nil
}
