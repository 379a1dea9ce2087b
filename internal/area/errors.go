package area

import "fmt"

// ParseErrorKind classifies why an uploaded area file could not be parsed.
type ParseErrorKind string

const (
	// MalformedContainer: the compressed container could not be opened or
	// holds no geometry document.
	MalformedContainer ParseErrorKind = "malformed_container"
	// MalformedGeometry: the geometry document itself could not be decoded.
	MalformedGeometry ParseErrorKind = "malformed_geometry"
	// EmptyDocument: the document decoded but yielded zero valid polygons.
	EmptyDocument ParseErrorKind = "empty_document"
)

// ParseError is fatal to the upload step and is never retried.
type ParseError struct {
	Kind ParseErrorKind
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("area: %s", e.Kind)
	}
	return fmt.Sprintf("area: %s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(kind ParseErrorKind, err error) *ParseError {
	return &ParseError{Kind: kind, Err: err}
}
