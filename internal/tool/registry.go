package tool

import (
	"context"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
)

// Registry manages tool registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// DefaultRegistry creates a registry with the find_usages tool.
func DefaultRegistry(provider ReferenceProvider, previews PreviewSource, opts ...FindUsagesOption) *Registry {
	r := NewRegistry()
	r.Register(NewFindUsagesTool(provider, previews, opts...))
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logging.Debug().Str("tool", tool.ID()).Msg("registering tool")
	r.tools[tool.ID()] = tool
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// List returns the descriptors of all registered tools, sorted by name.
func (r *Registry) List() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]mcp.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t.Descriptor())
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// IDs returns all tool IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Invoke runs one tool call. Every call yields exactly one result; all
// failures are isError results.
//
// Checks run in order: arguments must be an object, the name must be
// registered, then the tool validates its own arguments.
func (r *Registry) Invoke(ctx context.Context, name string, args any) *mcp.CallToolResult {
	argMap, ok := args.(map[string]any)
	if !ok {
		return ErrorResult(invalidArguments("arguments must be an object"))
	}

	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(unknownTool(name, r.IDs()))
	}

	inv, err := t.Decode(argMap)
	if err != nil {
		return ErrorResult(err)
	}

	return t.Execute(ctx, inv)
}

// ErrorResult converts an error into an isError tool result. Causes of
// tool errors are logged, not returned.
func ErrorResult(err error) *mcp.CallToolResult {
	if te, ok := err.(*Error); ok {
		ev := logging.Warn().Str("kind", string(te.Kind))
		if te.Cause != nil {
			ev = ev.Err(te.Cause)
		}
		ev.Msg(te.Message)
		return mcp.NewToolResultError(te.Message)
	}
	logging.Error().Err(err).Msg("tool failed")
	return mcp.NewToolResultError(err.Error())
}
