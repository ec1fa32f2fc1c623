package http

import (
	"fmt"
	"net/http"
)

// AppError is an application error with an HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", fmt.Sprintf(format, a...), http.StatusNotFound)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", fmt.Sprintf(format, a...), http.StatusBadRequest)
}

// UnprocessableErrorf reports input that is well formed but cannot be scored.
func UnprocessableErrorf(format string, a ...interface{}) *AppError {
	return NewAppError("ERR_UNPROCESSABLE", "", fmt.Sprintf(format, a...), http.StatusUnprocessableEntity)
}

func TooManyRequestsError() *AppError {
	return NewAppError("ERR_RATE_LIMITED", "", "too many requests", http.StatusTooManyRequests)
}

func UnavailableErrorf(format string, a ...interface{}) *AppError {
	return NewAppError("ERR_UNAVAILABLE", "", fmt.Sprintf(format, a...), http.StatusServiceUnavailable)
}

func InternalErrorf(format string, a ...interface{}) *AppError {
	return NewAppError("ERR_INTERNAL", "", fmt.Sprintf(format, a...), http.StatusInternalServerError)
}
