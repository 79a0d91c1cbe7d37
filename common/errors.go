package common

import (
	"encoding/json"
	"go-auth-api/config"
	"go-auth-api/logger"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorKind is the machine-readable classification of a failure.
type ErrorKind string

const (
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindDuplicateEmail     ErrorKind = "DUPLICATE_EMAIL"
	KindInvalidCredentials ErrorKind = "INVALID_CREDENTIALS"
	KindNoToken            ErrorKind = "NO_TOKEN"
	KindMalformedHeader    ErrorKind = "MALFORMED_HEADER"
	KindTokenExpired       ErrorKind = "TOKEN_EXPIRED"
	KindInvalidToken       ErrorKind = "INVALID_TOKEN"
	KindAccountNotFound    ErrorKind = "ACCOUNT_NOT_FOUND"
	KindRefreshRevoked     ErrorKind = "REFRESH_TOKEN_REVOKED"
	KindRateLimitExceeded  ErrorKind = "RATE_LIMIT_EXCEEDED"
	KindInternal           ErrorKind = "INTERNAL_ERROR"
)

// AppError is the single error type flowing through services, handlers and
// middleware. Operational errors carry a fixed status code and a message that
// is safe to show to the caller; internal errors are logged in full and the
// caller only ever sees a generic message.
type AppError struct {
	Success    bool       `json:"success"`
	StatusCode int        `json:"statusCode"`
	Message    string     `json:"message"`
	Kind       ErrorKind  `json:"-"`
	RetryAfter *time.Time `json:"retryAfter,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	Err        error      `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

// IsOperational reports whether the error is an expected, user-facing
// condition as opposed to a programming fault.
func (e *AppError) IsOperational() bool {
	return e.Kind != KindInternal
}

func NewAppError(kind ErrorKind, code int, message string, err error) *AppError {
	return &AppError{
		StatusCode: code,
		Kind:       kind,
		Message:    message,
		Err:        err,
	}
}

func ErrValidation(message string, err error) *AppError {
	return NewAppError(KindValidation, http.StatusBadRequest, message, err)
}

func ErrDuplicateEmail() *AppError {
	return NewAppError(KindDuplicateEmail, http.StatusBadRequest, "User already exists with this email", nil)
}

// ErrInvalidCredentials is returned for unknown email and wrong password
// alike, so the response never reveals which accounts exist.
func ErrInvalidCredentials() *AppError {
	return NewAppError(KindInvalidCredentials, http.StatusBadRequest, "Invalid credentials", nil)
}

func ErrNoToken() *AppError {
	return NewAppError(KindNoToken, http.StatusUnauthorized, "No token provided. Please login.", nil)
}

func ErrMalformedHeader() *AppError {
	return NewAppError(KindMalformedHeader, http.StatusUnauthorized, "Invalid token format. Use: Bearer TOKEN", nil)
}

func ErrTokenExpired() *AppError {
	return NewAppError(KindTokenExpired, http.StatusUnauthorized, "Access token expired. Please refresh.", nil)
}

func ErrInvalidToken() *AppError {
	return NewAppError(KindInvalidToken, http.StatusUnauthorized, "Invalid token.", nil)
}

func ErrAccountNotFound(code int) *AppError {
	return NewAppError(KindAccountNotFound, code, "User not found.", nil)
}

func ErrRefreshInvalid() *AppError {
	return NewAppError(KindInvalidToken, http.StatusForbidden, "Invalid or expired refresh token", nil)
}

// ErrRefreshRevoked covers logout and tokens superseded by a later rotation.
// The caller must treat it as "session ended, re-login required".
func ErrRefreshRevoked() *AppError {
	return NewAppError(KindRefreshRevoked, http.StatusForbidden, "Invalid refresh token", nil)
}

func ErrRateLimited(resetAt time.Time) *AppError {
	appErr := NewAppError(KindRateLimitExceeded, http.StatusTooManyRequests, "Too many requests. Please try again later.", nil)
	appErr.RetryAfter = &resetAt
	return appErr
}

func ErrInternal(err error) *AppError {
	return NewAppError(KindInternal, http.StatusInternalServerError, "Internal Server Error", err)
}

// Send writes the error to the response in the uniform envelope and logs it.
// 5xx errors are logged at error severity with full internal detail, 4xx at warn.
func (e *AppError) Send(w http.ResponseWriter, r *http.Request) {
	fields := logrus.Fields{
		"status_code": e.StatusCode,
		"kind":        e.Kind,
	}
	if r != nil {
		fields["method"] = r.Method
		fields["url"] = r.URL.Path
		fields["ip"] = ClientIP(r)
	}
	if e.Err != nil {
		fields["internal_error"] = e.Err.Error()
	}

	if e.StatusCode >= http.StatusInternalServerError {
		logger.Log.WithFields(fields).Error(e.Message)
	} else {
		logger.Log.WithFields(fields).Warn(e.Message)
	}

	// Internal detail leaves the process only in development mode.
	if e.Err != nil && config.IsDevelopment() {
		e.Detail = e.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.StatusCode)
	json.NewEncoder(w).Encode(e)
}
