package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrorKind classifies service failures so handlers can pick a status code.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindInvalidTransition   ErrorKind = "INVALID_TRANSITION"
	KindConstraintViolation ErrorKind = "CONSTRAINT_VIOLATION"
	KindValidation          ErrorKind = "VALIDATION"
	KindExternalDependency  ErrorKind = "EXTERNAL_DEPENDENCY"
)

// Error is a domain error with a machine-readable code and a message that is
// safe to show to API clients.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Code, so sentinel-style comparisons work:
// errors.Is(err, &Error{Code: CodePaymentAlreadyCompleted}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Well-known error codes.
const (
	CodeInvalidQuoteStatus      = "INVALID_QUOTE_STATUS"
	CodeInvalidInvoiceStatus    = "INVALID_INVOICE_STATUS"
	CodeInvalidPaymentStatus    = "INVALID_PAYMENT_STATUS"
	CodePaymentAlreadyCompleted = "PAYMENT_ALREADY_COMPLETED"
	CodeInvalidContractStatus   = "INVALID_CONTRACT_STATUS"
	CodeDuplicatePosition       = "DUPLICATE_POSITION"
	CodeDuplicateFieldName      = "DUPLICATE_FIELD_NAME"
	CodeDuplicateDiscountCode   = "DUPLICATE_DISCOUNT_CODE"
	CodeRefundExceedsPayment    = "REFUND_EXCEEDS_PAYMENT"
	CodeInvalidDiscountValue    = "INVALID_DISCOUNT_VALUE"
	CodeInvalidDateRange        = "INVALID_DATE_RANGE"
	CodeValidation              = "VALIDATION_ERROR"
	CodeDiscountNotApplicable   = "DISCOUNT_NOT_APPLICABLE"
	CodeDuplicateClientEmail    = "DUPLICATE_CLIENT_EMAIL"
	CodeContractExpired         = "CONTRACT_EXPIRED"
	CodeSignatureRequired       = "SIGNATURE_REQUIRED"
	CodeInvitationExpired       = "INVITATION_EXPIRED"
	CodeStageNotInWorkflow      = "STAGE_NOT_IN_WORKFLOW"
	CodeEmailSendFailed         = "EMAIL_SEND_FAILED"
	CodePaymentGatewayFailed    = "PAYMENT_GATEWAY_ERROR"
	CodeDocumentStoreFailed     = "DOCUMENT_STORE_ERROR"
)

// NotFound builds a NotFound error for an entity such as "quote".
func NotFound(entity string, id interface{}) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    fmt.Sprintf("%s_NOT_FOUND", upper(entity)),
		Message: fmt.Sprintf("%s %v not found", entity, id),
	}
}

// InvalidTransition reports a status change outside the allowed table.
func InvalidTransition(code, entity string, current, attempted interface{}) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Code:    code,
		Message: fmt.Sprintf("cannot change %s status from %v to %v", entity, current, attempted),
	}
}

func ConstraintViolation(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConstraintViolation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func ExternalDependency(code string, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindExternalDependency, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of a service error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// notFoundOr translates gorm.ErrRecordNotFound into a NotFound error and
// wraps everything else.
func notFoundOr(err error, entity string, id interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(entity, id)
	}
	return fmt.Errorf("failed to load %s %v: %w", entity, id, err)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = c - 32
		case c == ' ' || c == '-':
			b[i] = '_'
		}
	}
	return string(b)
}
