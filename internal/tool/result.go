package tool

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

const defaultPreviewConcurrency = 8

// ResolvePreviews attaches the source line at each location's start.
// Output order matches input order. A preview that cannot be read is
// logged and replaced by types.PreviewUnavailable; the location is kept.
func ResolvePreviews(ctx context.Context, source PreviewSource, locations []types.Location, limit int) []types.ReferenceResult {
	results := make([]types.ReferenceResult, len(locations))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, loc := range locations {
		results[i] = types.ReferenceResult{URI: loc.URI, Range: loc.Range, Preview: types.PreviewUnavailable}
		if source == nil {
			continue
		}
		g.Go(func() error {
			text, err := source.Line(ctx, loc.URI, loc.Range.Start.Line)
			if err != nil {
				logging.Warn().
					Err(err).
					Str("kind", string(PreviewUnavailable)).
					Str("uri", loc.URI).
					Int("line", loc.Range.Start.Line).
					Msg("preview unavailable")
				return nil
			}
			results[i].Preview = text
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ReferencesResult serializes reference results as indented JSON text content.
func ReferencesResult(results []types.ReferenceResult) *mcp.CallToolResult {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return ErrorResult(err)
	}
	return mcp.NewToolResultText(string(data))
}
