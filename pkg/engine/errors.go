package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an engine error. Classification is explicit: the
// executor and validator branch on kinds, never on message text.
type ErrorKind string

const (
	// KindParse indicates a malformed or unreadable declaration.
	KindParse ErrorKind = "parse"

	// KindDuplicateName indicates a name collision. Non-fatal at merge time
	// (the later resource is skipped), fatal at structural-validation time.
	KindDuplicateName ErrorKind = "duplicate_name"

	// KindUnresolved indicates the bridge has neither a baseline nor an
	// override for a requested key.
	KindUnresolved ErrorKind = "unresolved"

	// KindTimeout indicates a per-item validation timeout. Non-fatal to
	// the batch.
	KindTimeout ErrorKind = "timeout"

	// KindApply indicates a per-item apply failure. Non-fatal to the batch.
	KindApply ErrorKind = "apply"

	// KindCritical indicates a failure that aborts the whole run.
	KindCritical ErrorKind = "critical"

	// KindInternal indicates an engine-internal failure, distinct from a
	// normally-computed invalid result.
	KindInternal ErrorKind = "internal"
)

// Error is a classified engine error with optional resource and operation
// context.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Resource is the resource name that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	}
	if e.Operation != "" {
		msg = fmt.Sprintf("%s (operation=%s)", msg, e.Operation)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two engine errors match when
// their kinds match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithResource adds resource context to the error.
func (e *Error) WithResource(name string) *Error {
	e.Resource = name
	return e
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// NewParseError creates a parse-classified error.
func NewParseError(message string, err error) *Error {
	return &Error{Kind: KindParse, Message: message, Err: err}
}

// NewDuplicateNameError creates a duplicate-name error for the given item.
func NewDuplicateNameError(name string) *Error {
	return &Error{
		Kind:     KindDuplicateName,
		Message:  "item with this name already exists",
		Resource: name,
	}
}

// NewUnresolvedError creates an unresolved-configuration error.
func NewUnresolvedError(requestKind, requestKey string) *Error {
	return &Error{
		Kind:    KindUnresolved,
		Message: fmt.Sprintf("no baseline or override for %s %q", requestKind, requestKey),
	}
}

// NewTimeoutError creates a per-item validation timeout error.
func NewTimeoutError(resource string) *Error {
	return &Error{
		Kind:     KindTimeout,
		Message:  "validation timed out",
		Resource: resource,
	}
}

// NewApplyError creates a per-item apply error.
func NewApplyError(message string, err error) *Error {
	return &Error{Kind: KindApply, Message: message, Err: err}
}

// NewCriticalError creates a run-aborting error.
func NewCriticalError(message string, err error) *Error {
	return &Error{Kind: KindCritical, Message: message, Err: err}
}

// NewInternalError creates an engine-internal error.
func NewInternalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsCritical reports whether err aborts the whole run.
func IsCritical(err error) bool {
	return IsKind(err, KindCritical)
}

// IsDuplicateName reports whether err is a name collision.
func IsDuplicateName(err error) bool {
	return IsKind(err, KindDuplicateName)
}

// IsUnresolved reports whether err is an unresolved bridge request.
func IsUnresolved(err error) bool {
	return IsKind(err, KindUnresolved)
}

// IsTimeout reports whether err is a per-item validation timeout.
func IsTimeout(err error) bool {
	return IsKind(err, KindTimeout)
}
