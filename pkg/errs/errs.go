// Package errs defines the typed error taxonomy shared by every NogDB layer.
//
// Every fallible operation in the schema catalog, record store, index engine,
// transaction manager, and query engine returns one of these codes wrapped in
// an *Error. Callers compare with errors.Is against the sentinel Code values
// below rather than matching on message text.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. The names match the canonical error
// kinds listed in the NogDB library surface.
type Code string

const (
	InvalidClassName       Code = "CTX_INVALID_CLASSNAME"
	InvalidClassType       Code = "CTX_INVALID_CLASSTYPE"
	InvalidPropertyName    Code = "CTX_INVALID_PROPERTYNAME"
	InvalidPropType        Code = "CTX_INVALID_PROPTYPE"
	InvalidPropTypeIndex   Code = "CTX_INVALID_PROPTYPE_INDEX"
	InvalidIndexConstraint Code = "CTX_INVALID_INDEX_CONSTRAINT"
	InvalidComparator      Code = "CTX_INVALID_COMPARATOR"
	DuplicateClass         Code = "CTX_DUPLICATE_CLASS"
	DuplicateProperty      Code = "CTX_DUPLICATE_PROPERTY"
	DuplicateIndex         Code = "CTX_DUPLICATE_INDEX"
	OverrideProperty       Code = "CTX_OVERRIDE_PROPERTY"
	NoExistClass           Code = "CTX_NOEXST_CLASS"
	NoExistProperty        Code = "CTX_NOEXST_PROPERTY"
	NoExistIndex           Code = "CTX_NOEXST_INDEX"
	NoExistRecord          Code = "CTX_NOEXST_RECORD"
	MismatchClassType      Code = "CTX_MISMATCH_CLASSTYPE"
	InUsedProperty         Code = "CTX_IN_USED_PROPERTY"
	GraphNoExistVertex     Code = "GRAPH_NOEXST_VERTEX"
	GraphNoExistSrc        Code = "GRAPH_NOEXST_SRC"
	GraphNoExistDst        Code = "GRAPH_NOEXST_DST"

	// WriterActive reports that a second ReadWrite transaction was
	// attempted while one is already live.
	WriterActive Code = "CTX_WRITER_ACTIVE"
	// ClosedContext reports use of a closed or moved-from Context.
	ClosedContext Code = "CTX_CLOSED"
	// ClosedTransaction reports a write attempted through a ReadOnly
	// transaction. Use of a committed or rolled-back transaction is not
	// reported with this code; its kv layer returns kv.ErrClosed.
	ClosedTransaction Code = "CTX_TXN_CLOSED"
)

// Error is the concrete type every NogDB operation returns on failure.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same Code, whatever its message, so
// errors.Is(err, errs.Sentinel(code)) or errors.Is(err, errs.New(code, ""))
// compares by code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New constructs an *Error for the given code with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinel is a zero-message Error usable as an errors.Is comparison target,
// e.g. errors.Is(err, errs.Sentinel(errs.NoExistClass)).
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
