// Package tools provides tool management and registration.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Per-flow subsetting hidden
// - Conversion to model-facing definitions abstracted

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/richinex/patchscout/llm"
)

// Registry manages available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool to the registry.
// Returns error if a tool with the same name already exists.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Metadata().Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool '%s' already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// List returns metadata for all registered tools in registration order.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]ToolMetadata, 0, len(r.order))
	for _, name := range r.order {
		metadata = append(metadata, r.tools[name].Metadata())
	}
	return metadata
}

// Subset returns a registry holding only the named tools, in the given order.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := NewRegistry()
	for _, name := range names {
		tool, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("tool '%s' not registered", name)
		}
		if err := sub.Register(tool); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Definitions returns the model-facing description of every tool.
func (r *Registry) Definitions() []llm.ToolDefinition {
	list := r.List()
	defs := make([]llm.ToolDefinition, len(list))
	for i, meta := range list {
		defs[i] = llm.ToolDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters:  meta.Schema(),
		}
	}
	return defs
}

// Description returns a human-readable listing of all tools.
func (r *Registry) Description() string {
	var descriptions []string
	for _, meta := range r.List() {
		var params []string
		for _, p := range meta.Parameters {
			req := ""
			if p.Required {
				req = " (required)"
			}
			params = append(params, fmt.Sprintf("  - %s: %s%s - %s", p.Name, p.ParamType, req, p.Description))
		}
		descriptions = append(descriptions, fmt.Sprintf(
			"Tool: %s\nDescription: %s\nParameters:\n%s",
			meta.Name, meta.Description, strings.Join(params, "\n"),
		))
	}
	return strings.Join(descriptions, "\n\n")
}
