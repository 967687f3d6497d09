package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a document decoding error with source position.
type CompileError struct {
	// Field is the document path of the offending value, e.g.
	// "query.limit.count" or "catalog[1].columns[0].type".
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: "cue", Message: err.Error()}
	}

	// Return first error with position info
	firstErr := errs[0]
	ce := &CompileError{Field: "cue", Message: firstErr.Error()}
	if path := errors.Path(firstErr); len(path) > 0 {
		ce.Field = strings.Join(path, ".")
	}
	if positions := errors.Positions(firstErr); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}

// errorAt reports a problem with the value v.
func errorAt(v cue.Value, format string, args ...any) error {
	return &CompileError{
		Field:   pathOf(v),
		Message: fmt.Sprintf(format, args...),
		Pos:     v.Pos(),
	}
}

// missing reports that the required field name of v is absent.
func missing(v cue.Value, name string) error {
	return &CompileError{
		Field:   childPath(v, name),
		Message: "field is required",
		Pos:     v.Pos(),
	}
}

func pathOf(v cue.Value) string {
	if p := v.Path().String(); p != "" {
		return p
	}
	return "document"
}

func childPath(v cue.Value, name string) string {
	if p := v.Path().String(); p != "" {
		return p + "." + name
	}
	return name
}
