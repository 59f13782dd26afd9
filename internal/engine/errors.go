package engine

import "errors"

// Kind classifies engine errors for callers that map them to transport
// codes (HTTP status, MCP tool errors).
type Kind string

const (
	// KindValidation marks malformed input. No state was touched.
	KindValidation Kind = "validation"
	// KindNotFound marks an unknown or inactive issue. No state was touched.
	KindNotFound Kind = "not_found"
	// KindConflict marks a resolution already in flight for the issue.
	// The caller decides whether to retry later.
	KindConflict Kind = "conflict"
	// KindPersistence marks a storage fault. All partial effects of the
	// resolution were rolled back; the operation is retryable.
	KindPersistence Kind = "persistence"
)

// Error is an engine failure with a machine-readable kind.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the kind of err, or "" if err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return ""
}

func validationErr(msg string, err error) *Error {
	return &Error{kind: KindValidation, msg: msg, err: err}
}

func notFoundErr(msg string) *Error {
	return &Error{kind: KindNotFound, msg: msg}
}

func conflictErr(msg string) *Error {
	return &Error{kind: KindConflict, msg: msg}
}

func persistenceErr(msg string, err error) *Error {
	return &Error{kind: KindPersistence, msg: msg, err: err}
}
