package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"

	// Resolution and IR copy failures.
	CodeLookupFailure      ErrorCode = "LOOKUP_FAILURE"
	CodeStageViolation     ErrorCode = "STAGE_VIOLATION"
	CodeUnsupportedElement ErrorCode = "UNSUPPORTED_ELEMENT"
	CodeDanglingLoopTarget ErrorCode = "DANGLING_LOOP_TARGET"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxSymbol    = "symbol"
	CtxStage     = "stage"
	CtxReason    = "reason"
)

// Lookup failure reasons stored under CtxReason.
const (
	ReasonUnknown   = "unknown"
	ReasonAmbiguous = "ambiguous"
	ReasonStale     = "stale"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Newf(code ErrorCode, format string, args ...interface{}) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a key to the first DomainError in err's chain, or wraps
// err as an internal error when there is none.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return err
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ContextValue returns the context value stored under key on the first
// DomainError in err's chain.
func ContextValue(err error, key string) (interface{}, bool) {
	var de *DomainError
	if !errors.As(err, &de) || de.Context == nil {
		return nil, false
	}
	v, ok := de.Context[key]
	return v, ok
}
