package errors

import (
	stdErrors "errors"
	"net/http"
)

// Code classifies a failure across the saga, the state machine and the
// payment collaborator.
type Code string

const (
	CodeValidation                    Code = "VALIDATION_ERROR"
	CodeEmptyCart                     Code = "EMPTY_CART"
	CodeInsufficientStock             Code = "INSUFFICIENT_STOCK"
	CodeOrderNumberCollisionExhausted Code = "ORDER_NUMBER_COLLISION_EXHAUSTED"
	CodePaymentAuthorizationFailed    Code = "PAYMENT_AUTHORIZATION_FAILED"
	CodePaymentCaptureFailed          Code = "PAYMENT_CAPTURE_FAILED"
	CodeInvalidStatusTransition       Code = "INVALID_STATUS_TRANSITION"
	CodeCannotCancel                  Code = "CANNOT_CANCEL"
	CodeCannotRefund                  Code = "CANNOT_REFUND"
	CodeNotFound                      Code = "NOT_FOUND"
	CodeConflict                      Code = "CONFLICT"
	CodeIdempotency                   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal                      Code = "INTERNAL_ERROR"
	CodeDependency                    Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code surfaces to callers. Zero values mean not
// retryable and no details.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:                    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	CodeEmptyCart:                     {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "cart has no items"},
	CodeInsufficientStock:             {HTTPStatus: http.StatusConflict, PublicMessage: "insufficient stock", DetailsAllowed: true},
	CodeOrderNumberCollisionExhausted: {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "could not allocate order number", Retryable: true},
	CodePaymentAuthorizationFailed:    {HTTPStatus: http.StatusPaymentRequired, PublicMessage: "payment authorization failed", DetailsAllowed: true},
	CodePaymentCaptureFailed:          {HTTPStatus: http.StatusPaymentRequired, PublicMessage: "payment capture failed", DetailsAllowed: true},
	CodeInvalidStatusTransition:       {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
	CodeCannotCancel:                  {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "order cannot be cancelled", DetailsAllowed: true},
	CodeCannotRefund:                  {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "order cannot be refunded", DetailsAllowed: true},
	CodeNotFound:                      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	CodeConflict:                      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
	CodeIdempotency:                   {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true},
	CodeInternal:                      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
	CodeDependency:                    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Retryable reports whether the first typed error in err's chain may succeed
// on a later attempt. Untyped errors count as internal, hence retryable.
func Retryable(err error) bool {
	return MetadataFor(CodeOf(err)).Retryable
}

// Error is a coded error with an optional cause and structured details.
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
	msg := string(e.code) + ": " + e.message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
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

// CodeOf returns the code of the first typed error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
