package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

// FindUsagesName is the registered name of the reference lookup tool.
const FindUsagesName = "find_usages"

// NoReferencesText is the success text returned for an empty lookup.
const NoReferencesText = "No references found"

const findUsagesDescription = "Find all references to the symbol at a position in a document. " +
	"Returns each usage with its location and the source line as a preview."

// FindUsagesArgs is the decoded find_usages invocation.
type FindUsagesArgs struct {
	Location           types.DocumentLocation
	IncludeDeclaration bool
}

func (*FindUsagesArgs) ToolName() string { return FindUsagesName }

// findUsagesInput mirrors the wire arguments. Pointers distinguish a missing
// field from a zero value.
type findUsagesInput struct {
	TextDocument *struct {
		URI *string `json:"uri" validate:"required,min=1"`
	} `json:"textDocument" validate:"required"`
	Position *struct {
		Line      *float64 `json:"line" validate:"required,min=0"`
		Character *float64 `json:"character" validate:"required,min=0"`
	} `json:"position" validate:"required"`
	Context *struct {
		IncludeDeclaration *bool `json:"includeDeclaration"`
	} `json:"context"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FindUsagesOption configures the find_usages tool.
type FindUsagesOption func(*FindUsagesTool)

// WithProviderTimeout bounds each reference lookup. Zero means no bound.
func WithProviderTimeout(d time.Duration) FindUsagesOption {
	return func(t *FindUsagesTool) {
		t.timeout = d
	}
}

// WithPreviewConcurrency limits concurrent preview reads.
func WithPreviewConcurrency(n int) FindUsagesOption {
	return func(t *FindUsagesTool) {
		if n > 0 {
			t.previewLimit = n
		}
	}
}

// FindUsagesTool looks up symbol references through a ReferenceProvider and
// attaches line previews.
type FindUsagesTool struct {
	provider     ReferenceProvider
	previews     PreviewSource
	timeout      time.Duration
	previewLimit int
	descriptor   mcp.Tool
}

// NewFindUsagesTool creates the find_usages tool.
func NewFindUsagesTool(provider ReferenceProvider, previews PreviewSource, opts ...FindUsagesOption) *FindUsagesTool {
	t := &FindUsagesTool{
		provider:     provider,
		previews:     previews,
		previewLimit: defaultPreviewConcurrency,
		descriptor:   findUsagesDescriptor(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func findUsagesDescriptor() mcp.Tool {
	tool := mcp.NewTool(FindUsagesName,
		mcp.WithDescription(findUsagesDescription),
		mcp.WithTitleAnnotation("Find Usages"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	// Nested required lists are set directly: WithObject reserves the
	// "required" key for the top-level flag.
	tool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"textDocument": map[string]any{
				"type":        "object",
				"description": "The document containing the symbol",
				"properties": map[string]any{
					"uri": map[string]any{
						"type":        "string",
						"description": "URI of the document (file:///path/to/file)",
					},
				},
				"required": []string{"uri"},
			},
			"position": map[string]any{
				"type":        "object",
				"description": "Zero-based position of the symbol",
				"properties": map[string]any{
					"line": map[string]any{
						"type":        "number",
						"description": "Zero-based line number",
						"minimum":     0,
					},
					"character": map[string]any{
						"type":        "number",
						"description": "Zero-based character offset",
						"minimum":     0,
					},
				},
				"required": []string{"line", "character"},
			},
			"context": map[string]any{
				"type":        "object",
				"description": "Additional lookup options",
				"properties": map[string]any{
					"includeDeclaration": map[string]any{
						"type":        "boolean",
						"description": "Include the declaration of the symbol in the results",
						"default":     false,
					},
				},
			},
		},
		Required: []string{"textDocument", "position"},
	}
	return tool
}

func (t *FindUsagesTool) ID() string           { return FindUsagesName }
func (t *FindUsagesTool) Descriptor() mcp.Tool { return t.descriptor }

// Decode validates find_usages arguments.
func (t *FindUsagesTool) Decode(args map[string]any) (Invocation, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, invalidArguments("%v", err)
	}

	var in findUsagesInput
	if err := json.Unmarshal(raw, &in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, invalidArguments("%s must be a %s", typeErr.Field, expectedType(typeErr.Type))
		}
		return nil, invalidArguments("%v", err)
	}

	if err := validate.Struct(&in); err != nil {
		return nil, describeValidation(err)
	}

	line, character := *in.Position.Line, *in.Position.Character
	if line != math.Trunc(line) || character != math.Trunc(character) {
		return nil, invalidArguments("position.line and position.character must be integers")
	}
	if line > math.MaxInt32 || character > math.MaxInt32 {
		return nil, invalidArguments("position is out of range")
	}

	inv := &FindUsagesArgs{
		Location: types.DocumentLocation{
			URI:      *in.TextDocument.URI,
			Position: types.Position{Line: int(line), Character: int(character)},
		},
	}
	if in.Context != nil && in.Context.IncludeDeclaration != nil {
		inv.IncludeDeclaration = *in.Context.IncludeDeclaration
	}
	return inv, nil
}

func expectedType(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		return "object"
	case reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	default:
		return t.Kind().String()
	}
}

func describeValidation(err error) *Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalidArguments("%v", err)
	}

	fe := fieldErrs[0]
	// Namespace is "findUsagesInput.position.line"; drop the struct name.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return invalidArguments("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return invalidArguments("%s must not be empty", field)
		}
		return invalidArguments("%s must be >= %s", field, fe.Param())
	default:
		return invalidArguments("%s failed %s validation", field, fe.Tag())
	}
}

// Execute looks up references and shapes them into a JSON text result.
func (t *FindUsagesTool) Execute(ctx context.Context, inv Invocation) *mcp.CallToolResult {
	args, ok := inv.(*FindUsagesArgs)
	if !ok {
		return ErrorResult(fmt.Errorf("find_usages: unexpected invocation %T", inv))
	}

	lookupCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	locations, err := t.provider.References(lookupCtx, args.Location, args.IncludeDeclaration)
	if err != nil {
		return ErrorResult(providerFailure(fmt.Errorf("references for %s:%d:%d: %w",
			args.Location.URI, args.Location.Position.Line, args.Location.Position.Character, err)))
	}

	logging.Debug().
		Str("uri", args.Location.URI).
		Int("line", args.Location.Position.Line).
		Int("character", args.Location.Position.Character).
		Int("count", len(locations)).
		Dur("duration", time.Since(start)).
		Msg("references resolved")

	if len(locations) == 0 {
		return mcp.NewToolResultText(NoReferencesText)
	}

	results := ResolvePreviews(ctx, t.previews, locations, t.previewLimit)
	return ReferencesResult(results)
}
