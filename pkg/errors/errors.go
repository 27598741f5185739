package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrValidation
	ErrConflict
	ErrStorage
	ErrUnauthorized
	ErrChannelUnavailable
	ErrDeliveryTransient
	ErrDeliveryPermanent
	ErrInternal
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Validation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

func Storage(err error) *AppError {
	return &AppError{
		Code:    ErrStorage,
		Message: "storage failure",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func ChannelUnavailable(tag string) *AppError {
	return &AppError{
		Code:    ErrChannelUnavailable,
		Message: fmt.Sprintf("channel %q unavailable", tag),
	}
}

func DeliveryTransient(err error) *AppError {
	return &AppError{
		Code:    ErrDeliveryTransient,
		Message: "transient delivery failure",
		Err:     err,
	}
}

func DeliveryPermanent(err error) *AppError {
	return &AppError{
		Code:    ErrDeliveryPermanent,
		Message: "permanent delivery failure",
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool  { return IsCode(err, ErrNotFound) }
func IsConflict(err error) bool  { return IsCode(err, ErrConflict) }
func IsTransient(err error) bool { return IsCode(err, ErrDeliveryTransient) }
