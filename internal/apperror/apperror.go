package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for retry and surfacing decisions.
type Kind string

const (
	KindContentFilter            Kind = "CONTENT_FILTER"
	KindRateLimit                Kind = "RATE_LIMIT"
	KindServiceUnavailable       Kind = "SERVICE_UNAVAILABLE"
	KindTimeout                  Kind = "TIMEOUT"
	KindCacheKeyExists           Kind = "CACHE_KEY_EXISTS"
	KindCacheKeyNotFound         Kind = "CACHE_KEY_NOT_FOUND"
	KindConflict                 Kind = "CONFLICT"
	KindNotFound                 Kind = "NOT_FOUND"
	KindValidation               Kind = "VALIDATION"
	KindFileDownload             Kind = "FILE_DOWNLOAD"
	KindFileProcessing           Kind = "FILE_PROCESSING"
	KindClientConnectionClosed   Kind = "CLIENT_CONNECTION_CLOSED"
	KindMessageProcessingTimeout Kind = "MESSAGE_PROCESSING_TIMEOUT"
	KindTransient                Kind = "TRANSIENT"
	KindFatal                    Kind = "FATAL"
	KindInternal                 Kind = "INTERNAL"
)

// AppError carries a kind, a short user-safe message and the underlying cause.
// The cause never reaches the client; it is for logs only.
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on kind so callers can use errors.Is with sentinel kinds.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

func Newf(kind Kind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from any error chain, defaulting to Internal.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindClientConnectionClosed
	}
	return KindInternal
}

// Retryable reports whether an orchestrator step may retry after this error.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindServiceUnavailable, KindTransient:
		return true
	}
	return false
}

// HTTPStatus maps an error kind onto the status code the config and session
// APIs return for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindContentFilter:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout, KindMessageProcessingTimeout:
		return http.StatusGatewayTimeout
	case KindConflict, KindCacheKeyExists:
		return http.StatusConflict
	case KindNotFound, KindCacheKeyNotFound:
		return http.StatusNotFound
	case KindValidation, KindFileProcessing, KindFileDownload:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
