package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code       string
	Message    string
	Detail     string
	StatusCode int
	Err        error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail

	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err

	return e
}

const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeDatabaseError   = "DATABASE_ERROR"
	ErrCodeThirdPartyError = "THIRD_PARTY_ERROR"
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"

	// Cart and checkout domain codes.
	ErrCodeInsufficientStock   = "INSUFFICIENT_STOCK"
	ErrCodeQuantityExceeded    = "QUANTITY_EXCEEDED"
	ErrCodeInvalidPromoCode    = "INVALID_PROMO_CODE"
	ErrCodeEmptyCart           = "EMPTY_CART"
	ErrCodeMedicalInfoRequired = "MEDICAL_INFO_REQUIRED"
	ErrCodeSignatureFailed     = "SIGNATURE_VERIFICATION_FAILED"
	ErrCodeDuplicateSettlement = "DUPLICATE_SETTLEMENT"
	ErrCodeNoShippingRate      = "NO_SHIPPING_RATE"
)

func ValidationError(message string) *AppError {
	return NewAppError(ErrCodeValidation, message, http.StatusBadRequest)
}

func BadRequestError(message string) *AppError {
	return NewAppError(ErrCodeBadRequest, message, http.StatusBadRequest)
}

func NotFoundError(message string) *AppError {
	return NewAppError(ErrCodeNotFound, message, http.StatusNotFound)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func ForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func InternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func DatabaseError(message string) *AppError {
	return NewAppError(ErrCodeDatabaseError, message, http.StatusInternalServerError)
}

func ThirdPartyError(message string) *AppError {
	return NewAppError(ErrCodeThirdPartyError, message, http.StatusInternalServerError)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(ErrCodeTooManyRequests, message, http.StatusTooManyRequests)
}

func InsufficientStockError(message string) *AppError {
	return NewAppError(ErrCodeInsufficientStock, message, http.StatusConflict)
}

func QuantityExceededError(message string) *AppError {
	return NewAppError(ErrCodeQuantityExceeded, message, http.StatusConflict)
}

func InvalidPromoCodeError(message string) *AppError {
	return NewAppError(ErrCodeInvalidPromoCode, message, http.StatusBadRequest)
}

func EmptyCartError(message string) *AppError {
	return NewAppError(ErrCodeEmptyCart, message, http.StatusBadRequest)
}

func MedicalInfoRequiredError(message string) *AppError {
	return NewAppError(ErrCodeMedicalInfoRequired, message, http.StatusBadRequest)
}

func SignatureVerificationError(message string) *AppError {
	return NewAppError(ErrCodeSignatureFailed, message, http.StatusBadRequest)
}

func DuplicateSettlementError(message string) *AppError {
	return NewAppError(ErrCodeDuplicateSettlement, message, http.StatusConflict)
}

func NoShippingRateError(message string) *AppError {
	return NewAppError(ErrCodeNoShippingRate, message, http.StatusUnprocessableEntity)
}

func IsAppError(err error) (*AppError, bool) {
	var appError *AppError

	if errors.As(err, &appError) {
		return appError, true
	}

	return nil, false
}

// field validation error.
func AddValidationError(field, reason string) *AppError {
	return ValidationError(fmt.Sprintf("Invalid field '%s': %s", field, reason))
}
