package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorSignatureInvalid  = "CHECKOUT_SIGNATURE_INVALID"
	ErrorMalformedPayload  = "CHECKOUT_MALFORMED_PAYLOAD"
	ErrorOrderNotFound     = "CHECKOUT_ORDER_NOT_FOUND"
	ErrorNotFound          = "CHECKOUT_NOT_FOUND"
	ErrorBadInput          = "CHECKOUT_BAD_INPUT"
	ErrorForbidden         = "CHECKOUT_FORBIDDEN"
	ErrorUnauthorized      = "CHECKOUT_UNAUTHORIZED"
	ErrorConflict          = "CHECKOUT_CONFLICT"
	ErrorGatewayFailure    = "CHECKOUT_GATEWAY_FAILURE"
	ErrorGatewayThrottled  = "CHECKOUT_GATEWAY_THROTTLED"
	ErrorDeliveryFailed    = "CHECKOUT_DELIVERY_FAILED"
	ErrorRetriesExhausted  = "CHECKOUT_RETRIES_EXHAUSTED"
	ErrorInternal          = "CHECKOUT_INTERNAL_ERROR"
	ErrorOperationRejected = "CHECKOUT_OPERATION_REJECTED"
)

func NewError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func WrapError(source error, category goerrors.Category, message string, textCode string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return NewError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func SignatureError(message string) *goerrors.Error {
	return NewError(message, goerrors.CategoryAuth, ErrorSignatureInvalid, nil)
}

func MalformedPayloadError(source error, message string) *goerrors.Error {
	return WrapError(source, goerrors.CategoryBadInput, message, ErrorMalformedPayload, nil)
}

func OrderNotFoundError(reference string) *goerrors.Error {
	return NewError("order not found", goerrors.CategoryNotFound, ErrorOrderNotFound, map[string]any{
		"reference": strings.TrimSpace(reference),
	})
}

func NotFoundError(resource string, id string) *goerrors.Error {
	return NewError(resource+" not found", goerrors.CategoryNotFound, ErrorNotFound, map[string]any{
		"resource": resource,
		"id":       strings.TrimSpace(id),
	})
}

func ValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func ForbiddenError(message string, metadata map[string]any) *goerrors.Error {
	return NewError(message, goerrors.CategoryAuthz, ErrorForbidden, metadata)
}

func GatewayError(source error, message string, metadata map[string]any) *goerrors.Error {
	return WrapError(source, goerrors.CategoryExternal, message, ErrorGatewayFailure, metadata)
}

func InternalError(source error, message string) *goerrors.Error {
	return WrapError(source, goerrors.CategoryInternal, message, ErrorInternal, nil)
}

// HasCategory reports whether err carries a go-errors envelope of category.
func HasCategory(err error, category goerrors.Category) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.Category == category
}

func IsNotFound(err error) bool {
	return HasCategory(err, goerrors.CategoryNotFound)
}

// MapError normalizes any error into the checkout error envelope with a
// stable text code and HTTP status.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryAuth).WithTextCode(ErrorSignatureInvalid))
	case strings.Contains(msg, "not found"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryConflict:
		return ErrorConflict
	case goerrors.CategoryExternal:
		return ErrorGatewayFailure
	case goerrors.CategoryRateLimit:
		return ErrorGatewayThrottled
	case goerrors.CategoryOperation:
		return ErrorOperationRejected
	default:
		return ErrorInternal
	}
}

func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
