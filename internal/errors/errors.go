// Package errors defines the error taxonomy shared by the data layer and the
// HTTP error renderer. Repositories surface Postgres failures as AppError
// values through MapDBError; the renderer translates codes into HTTP statuses.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes an AppError for transport-level handling.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeForeignKey ErrorCode = "foreign_key"
	ErrCodeInternal   ErrorCode = "internal"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeCanceled   ErrorCode = "canceled"
)

// AppError carries a coded, user-presentable error. Cause keeps the original
// error reachable through errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending column for conflict and validation errors,
	// when it can be determined.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetCode returns the code of the first AppError in err's chain, or the empty
// string when the chain holds none.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the offending field of the first AppError in err's chain,
// or the empty string when the chain holds none or the field is unknown.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
