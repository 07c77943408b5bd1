// Driver builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"fmt"

	"github.com/richinex/patchscout/llm"
	"github.com/richinex/patchscout/tools"
)

// Builder provides fluent configuration for creating drivers.
// Usage: agent.NewBuilder(provider) - no stutter.
type Builder struct {
	provider llm.Provider
	registry *tools.Registry
	executor *tools.Executor
	config   Config
}

// NewBuilder creates a new driver builder for provider.
func NewBuilder(provider llm.Provider) *Builder {
	return &Builder{
		provider: provider,
		config:   DefaultConfig(),
	}
}

// Registry sets the tools flows may use.
func (b *Builder) Registry(registry *tools.Registry) *Builder {
	b.registry = registry
	return b
}

// ToolConfig sets the executor configuration.
func (b *Builder) ToolConfig(config tools.ToolConfig) *Builder {
	b.executor = tools.NewExecutor(config)
	if config.PageSize > 0 {
		b.config.PageSize = config.PageSize
	}
	return b
}

// MaxRounds sets the round limit.
func (b *Builder) MaxRounds(n int) *Builder {
	b.config.MaxRounds = n
	return b
}

// PromptTokenBudget sets the prompt size above which old results are elided.
func (b *Builder) PromptTokenBudget(n int) *Builder {
	b.config.PromptTokenBudget = n
	return b
}

// PageSize sets the default commit-log page size.
func (b *Builder) PageSize(n int) *Builder {
	b.config.PageSize = n
	return b
}

// Build creates the driver.
func (b *Builder) Build() (*Driver, error) {
	if b.provider == nil {
		return nil, fmt.Errorf("driver needs a model provider")
	}
	if b.registry == nil {
		return nil, fmt.Errorf("driver needs a tool registry")
	}
	return NewDriver(b.provider, b.registry, b.executor, b.config), nil
}
