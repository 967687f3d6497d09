package dialect

import (
	"errors"
	"fmt"
)

// UnsupportedError reports an operator or construct the target dialect
// cannot express. It is raised before any SQL text is returned.
type UnsupportedError struct {
	// Op names the construct, e.g. "WITH TIES" or "parameterized TOP".
	Op string

	// Dialect is the target, e.g. "sqlserver/8".
	Dialect string

	// Detail optionally explains what to change.
	Detail string
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s is not supported by %s: %s", e.Op, e.Dialect, e.Detail)
	}
	return fmt.Sprintf("%s is not supported by %s", e.Op, e.Dialect)
}

// Unsupported returns an UnsupportedError for op under d.
func (d *Dialect) Unsupported(op, detail string) *UnsupportedError {
	return &UnsupportedError{Op: op, Dialect: d.String(), Detail: detail}
}

// IsUnsupported returns true if err is or wraps an UnsupportedError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}
