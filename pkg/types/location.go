package types

// PreviewUnavailable is the preview text used when the source line of a
// reference cannot be read.
const PreviewUnavailable = "Preview unavailable"

// Position is a zero-based line/character offset in a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a range inside a document, as returned by a reference provider.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// DocumentLocation identifies the symbol a lookup starts from.
type DocumentLocation struct {
	URI      string   `json:"uri"`
	Position Position `json:"position"`
}

// ReferenceResult is one usage site returned to the caller.
type ReferenceResult struct {
	URI     string `json:"uri"`
	Range   Range  `json:"range"`
	Preview string `json:"preview"`
}
