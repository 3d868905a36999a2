package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeNotEligible  Code = "NOT_ELIGIBLE"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// metadataByCode maps each code to its HTTP contract. Internal and
// dependency failures are the only ones a caller may retry.
var metadataByCode = map[Code]Metadata{
	CodeValidation:   {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	CodeUnauthorized: {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	CodeForbidden:    {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	CodeNotFound:     {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	CodeConflict:     {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
	CodeNotEligible:  {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "reservation is not eligible", DetailsAllowed: true},
	CodeInternal:     {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:   {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err. Untyped errors count as internal
// and a nil error has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if typed := As(err); typed != nil {
		return typed.code
	}
	return CodeInternal
}

// IsCode reports whether err carries any of codes.
func IsCode(err error, codes ...Code) bool {
	got := CodeOf(err)
	if got == "" {
		return false
	}
	for _, c := range codes {
		if got == c {
			return true
		}
	}
	return false
}
