// Package errs defines the domain error returned by the orchestration layer.
// Every error surfaced to a caller carries a Kind and a stable Code; protocol
// boundaries map the kind to their own status convention.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation_error"
	KindAdapter    Kind = "adapter_error"
	KindNotFound   Kind = "not_found"
	KindTenant     Kind = "tenant_error"
	KindInternal   Kind = "internal_error"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Backend is set for adapter errors and names the ad server that failed.
	Backend string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Backend != "" {
		msg = fmt.Sprintf("%s: %s", e.Backend, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind and code so sentinel values can be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Validationf(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Adapter wraps a backend failure, keeping the originating backend name.
func Adapter(backend string, err error) *Error {
	return &Error{Kind: KindAdapter, Code: "adapter_failure", Message: "ad server request failed", Backend: backend, Err: err}
}

func AdapterMessage(backend, code, message, detail string) *Error {
	return &Error{Kind: KindAdapter, Code: code, Message: message, Backend: backend, Detail: detail}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Code: entity + "_not_found", Message: fmt.Sprintf("%s %q not found", entity, id)}
}

func Tenant(message string) *Error {
	return &Error{Kind: KindTenant, Code: "tenant_unresolved", Message: message}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: message, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Code reports the machine-readable code of err.
func Code(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return "internal"
}
