// Package tool provides the remotely callable tools and their registry.
package tool

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

// Tool defines the interface for all tools.
type Tool interface {
	// ID returns the tool name used in tools/call.
	ID() string

	// Descriptor returns the advertised name, description and input schema.
	Descriptor() mcp.Tool

	// Decode validates raw arguments into the tool's typed invocation.
	// Failures are *Error values of kind InvalidArguments.
	Decode(args map[string]any) (Invocation, error)

	// Execute runs a decoded invocation. Failures are reported as isError
	// results, never as Go errors.
	Execute(ctx context.Context, inv Invocation) *mcp.CallToolResult
}

// Invocation is a decoded, validated set of tool arguments.
type Invocation interface {
	ToolName() string
}

// ReferenceProvider resolves the usages of the symbol at a location.
type ReferenceProvider interface {
	References(ctx context.Context, loc types.DocumentLocation, includeDeclaration bool) ([]types.Location, error)
}

// ReferenceProviderFunc adapts a function to ReferenceProvider.
type ReferenceProviderFunc func(ctx context.Context, loc types.DocumentLocation, includeDeclaration bool) ([]types.Location, error)

func (f ReferenceProviderFunc) References(ctx context.Context, loc types.DocumentLocation, includeDeclaration bool) ([]types.Location, error) {
	return f(ctx, loc, includeDeclaration)
}

// PreviewSource returns the text of one line of a document.
type PreviewSource interface {
	Line(ctx context.Context, uri string, line int) (string, error)
}

// PreviewSourceFunc adapts a function to PreviewSource.
type PreviewSourceFunc func(ctx context.Context, uri string, line int) (string, error)

func (f PreviewSourceFunc) Line(ctx context.Context, uri string, line int) (string, error) {
	return f(ctx, uri, line)
}
