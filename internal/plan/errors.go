package plan

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/qplan/internal/itree"
)

// Input error codes (E200-E299)
const (
	ErrInvalidTree         = "E201" // structural problem in the command tree
	ErrUnknownTable        = "E202" // scan of a table missing from the catalog
	ErrUnknownColumn       = "E203" // column reference matches nothing in scope
	ErrAmbiguousColumn     = "E204" // column reference matches several sources
	ErrTypeMismatch        = "E205" // operand types do not fit the operator
	ErrParamRedeclared     = "E206" // parameter used with two different types
	ErrTiesWithoutOrder    = "E207" // WITH TIES over an unordered input
	ErrVolatileJoinOperand = "E208" // volatile join operand spans both inputs
)

// InputError reports a command tree that violates the input contract. It
// is raised before any rewrite phase runs.
type InputError struct {
	Code    string
	Path    string
	Message string
}

// Error implements the error interface.
func (e *InputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

func inputErrorf(code, path, format string, args ...any) *InputError {
	return &InputError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// IsInputError returns true if err is or wraps an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// InternalError reports a tree that a phase left inconsistent. It always
// indicates a compiler defect and wraps an assertion failure.
type InternalError struct {
	// Phase is the phase after which the problem was found.
	Phase string

	// Node is the offending node, when one could be identified.
	Node itree.Node

	Err error
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("internal error after %s at node %d (%T): %v", e.Phase, e.Node.ID(), e.Node, e.Err)
	}
	return fmt.Sprintf("internal error after %s: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying assertion failure.
func (e *InternalError) Unwrap() error { return e.Err }

// IsInternalError returns true if err is or wraps an InternalError.
func IsInternalError(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

func internalError(phase string, node itree.Node, err error) *InternalError {
	if !errors.HasAssertionFailure(err) {
		err = errors.NewAssertionErrorWithWrappedErrf(err, "%s", phase)
	}
	return &InternalError{Phase: phase, Node: node, Err: err}
}
