package tool

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"
)

// ErrorKind classifies a failed invocation.
type ErrorKind string

const (
	InvalidArguments   ErrorKind = "InvalidArguments"
	UnknownTool        ErrorKind = "UnknownTool"
	ProviderFailure    ErrorKind = "ProviderFailure"
	PreviewUnavailable ErrorKind = "PreviewUnavailable"
)

// Error is a tool-level failure. Message is what the caller sees; Cause is
// only logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of a tool error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

func invalidArguments(format string, args ...any) *Error {
	return &Error{Kind: InvalidArguments, Message: "Invalid arguments: " + fmt.Sprintf(format, args...)}
}

// unknownTool builds the UnknownTool error, suggesting the closest
// registered name when it is a plausible typo.
func unknownTool(name string, known []string) *Error {
	msg := "Unknown tool: " + name
	if suggestion := closest(name, known); suggestion != "" {
		msg += fmt.Sprintf(". Did you mean '%s'?", suggestion)
	}
	return &Error{Kind: UnknownTool, Message: msg}
}

func providerFailure(cause error) *Error {
	return &Error{Kind: ProviderFailure, Message: "Failed to find references", Cause: cause}
}

const maxSuggestionDistance = 3

func closest(name string, known []string) string {
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)

	best, bestDist := "", maxSuggestionDistance+1
	for _, candidate := range sorted {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
