package lsp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/fileuri"
	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

// References returns all references to the symbol at the given location.
// The document is opened on the server first so unsaved-on-disk state is not required.
func (c *Client) References(ctx context.Context, loc types.DocumentLocation, includeDeclaration bool) ([]types.Location, error) {
	file, err := fileuri.ToPath(loc.URI)
	if err != nil {
		return nil, err
	}

	client, err := c.getClient(ctx, file)
	if err != nil {
		return nil, err
	}

	if err := client.touchFile(file, loc.URI); err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}

	return client.references(ctx, loc, includeDeclaration)
}

func (lc *languageClient) references(ctx context.Context, loc types.DocumentLocation, includeDeclaration bool) ([]types.Location, error) {
	params := ReferenceParams{
		TextDocument: TextDocumentIdentifier{URI: loc.URI},
		Position: Position{
			Line:      loc.Position.Line,
			Character: loc.Position.Character,
		},
		Context: ReferenceContext{IncludeDeclaration: includeDeclaration},
	}

	var result []Location
	if err := lc.conn.call(ctx, "textDocument/references", params, &result); err != nil {
		return nil, err
	}

	locations := make([]types.Location, len(result))
	for i, l := range result {
		locations[i] = types.Location{
			URI: l.URI,
			Range: types.Range{
				Start: types.Position{Line: l.Range.Start.Line, Character: l.Range.Start.Character},
				End:   types.Position{Line: l.Range.End.Line, Character: l.Range.End.Character},
			},
		}
	}

	return locations, nil
}

// touchFile sends textDocument/didOpen the first time a file is queried.
func (lc *languageClient) touchFile(file, uri string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if _, ok := lc.openFiles[uri]; ok {
		return nil
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	params := DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: detectLanguageID(file),
			Version:    1,
			Text:       string(content),
		},
	}

	if err := lc.conn.notify("textDocument/didOpen", params); err != nil {
		return err
	}
	lc.openFiles[uri] = 1
	return nil
}

// detectLanguageID detects the language ID from a file path.
func detectLanguageID(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".go":
		return "go"
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "typescriptreact"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "javascriptreact"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".cxx", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".rb":
		return "ruby"
	default:
		return "plaintext"
	}
}
