package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrorKind classifies a ServiceError so the transport layer can pick a status code.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInvalidInput
	KindConflict
	KindExpired
	KindPreconditionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindExpired:
		return "expired"
	case KindPreconditionFailed:
		return "precondition_failed"
	}
	return "internal"
}

// ServiceError is a business-rule failure with a stable machine-readable code.
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewForbidden(code, format string, args ...interface{}) *ServiceError {
	return newError(KindForbidden, code, format, args...)
}

func NewNotFound(code, format string, args ...interface{}) *ServiceError {
	return newError(KindNotFound, code, format, args...)
}

func NewInvalidInput(code, format string, args ...interface{}) *ServiceError {
	return newError(KindInvalidInput, code, format, args...)
}

func NewConflict(code, format string, args ...interface{}) *ServiceError {
	return newError(KindConflict, code, format, args...)
}

func NewExpired(code, format string, args ...interface{}) *ServiceError {
	return newError(KindExpired, code, format, args...)
}

func NewPreconditionFailed(code, format string, args ...interface{}) *ServiceError {
	return newError(KindPreconditionFailed, code, format, args...)
}

// KindOf returns the kind of the first ServiceError in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// notFoundOr maps gorm's missing-row error onto a NotFound ServiceError and wraps
// anything else as an internal storage failure.
func notFoundOr(err error, code, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFound(code, "%s not found", what)
	}
	return fmt.Errorf("failed to load %s: %w", strings.ToLower(what), err)
}

// IsUniqueViolation detects duplicate-key errors from both PostgreSQL and SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique")
}
