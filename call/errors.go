package call

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure that crossed the sandbox boundary. The
// receiving side sees the same code the failing side produced.
type ErrorCode uint8

// Wire values. Do not reorder.
const (
	// CodeInternal is the generic code for failures that fit no other
	// category, including guest function bodies returning plain errors.
	CodeInternal ErrorCode = iota
	// CodeFunctionNotFound: the called name is absent from the registry and
	// the fallback handler declined it. The message carries the name.
	CodeFunctionNotFound
	// CodeParameterTypeMismatch: the envelope's parameter types do not match
	// the registered signature. The target function did not run.
	CodeParameterTypeMismatch
	// CodeEnvelopeDecode: the call envelope could not be decoded from its
	// wire form. Nothing was looked up or invoked.
	CodeEnvelopeDecode
	// CodeRegionAlignment: a memory region's base or length is not aligned
	// to the platform page size.
	CodeRegionAlignment
	// CodeHostCallFailed: a guest-initiated host call failed for a reason
	// opaque to the guest. The result of such a call is undefined and no
	// host side effect may be assumed.
	CodeHostCallFailed
)

func (c ErrorCode) String() string {
	switch c {
	case CodeInternal:
		return "internal error"
	case CodeFunctionNotFound:
		return "function not found"
	case CodeParameterTypeMismatch:
		return "parameter type mismatch"
	case CodeEnvelopeDecode:
		return "malformed call envelope"
	case CodeRegionAlignment:
		return "region not page aligned"
	case CodeHostCallFailed:
		return "host call failed"
	default:
		return fmt.Sprintf("error code %d", uint8(c))
	}
}

// Error is a typed failure that crosses the boundary with its code intact.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Message
}

// Errorf builds an Error with a formatted diagnostic message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf reports the boundary code carried by err. Errors that did not
// originate at the call boundary report CodeInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// AsError converts err into a boundary error, preserving an existing code
// and falling back to the generic internal code otherwise.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}
