package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func emptyProvider() ReferenceProvider {
	return ReferenceProviderFunc(func(context.Context, types.DocumentLocation, bool) ([]types.Location, error) {
		return nil, nil
	})
}

func TestDefaultRegistry_List(t *testing.T) {
	r := DefaultRegistry(emptyProvider(), nil)

	tools := r.List()
	require.Len(t, tools, 1)
	assert.Equal(t, FindUsagesName, tools[0].Name)
	assert.NotEmpty(t, tools[0].Description)
	assert.Equal(t, []string{FindUsagesName}, r.IDs())

	schema := tools[0].InputSchema
	assert.Equal(t, "object", schema.Type)
	assert.ElementsMatch(t, []string{"textDocument", "position"}, schema.Required)
	assert.Contains(t, schema.Properties, "context")

	position := schema.Properties["position"].(map[string]any)
	assert.Equal(t, []string{"line", "character"}, position["required"])
}

func TestRegistry_ListIsDeterministic(t *testing.T) {
	r := DefaultRegistry(emptyProvider(), nil)

	first, err := json.Marshal(r.List())
	require.NoError(t, err)
	second, err := json.Marshal(r.List())
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestRegistry_Invoke_NonObjectArguments(t *testing.T) {
	r := DefaultRegistry(emptyProvider(), nil)

	for _, args := range []any{nil, "textDocument", []any{1, 2}, float64(3)} {
		result := r.Invoke(context.Background(), FindUsagesName, args)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "Invalid arguments")
	}
}

func TestRegistry_Invoke_UnknownTool(t *testing.T) {
	r := DefaultRegistry(emptyProvider(), nil)

	result := r.Invoke(context.Background(), "frobnicate", map[string]any{})
	assert.True(t, result.IsError)
	assert.Equal(t, "Unknown tool: frobnicate", resultText(t, result))

	result = r.Invoke(context.Background(), "find_usage", map[string]any{})
	assert.True(t, result.IsError)
	assert.Equal(t, "Unknown tool: find_usage. Did you mean 'find_usages'?", resultText(t, result))
}

func TestRegistry_Invoke_ArgumentCheckPrecedesLookup(t *testing.T) {
	r := DefaultRegistry(emptyProvider(), nil)

	result := r.Invoke(context.Background(), "frobnicate", "not-an-object")
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Invalid arguments")
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, InvalidArguments, KindOf(invalidArguments("x")))
	assert.Equal(t, UnknownTool, KindOf(unknownTool("x", nil)))

	cause := assert.AnError
	err := providerFailure(cause)
	assert.Equal(t, ProviderFailure, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to find references", err.Error())

	assert.Equal(t, ErrorKind(""), KindOf(cause))
}

func TestClosest(t *testing.T) {
	known := []string{"find_usages"}
	assert.Equal(t, "find_usages", closest("find_usage", known))
	assert.Equal(t, "find_usages", closest("Find_Usages", known))
	assert.Equal(t, "", closest("list_files", known))
	assert.Equal(t, "", closest("anything", nil))
}
