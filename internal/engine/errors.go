package engine

import (
	"errors"
	"fmt"
)

// Error codes. Configuration-shaped errors abort the whole generation; no
// partial document is safe to hand to the caller.
const (
	ErrCodeConfiguration = "CONFIGURATION"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeCountMismatch = "COUNT_MISMATCH"
)

type ExportError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
}

func (e *ExportError) Error() string {
	return e.Message
}

func NewConfigurationError(format string, args ...any) *ExportError {
	return &ExportError{Code: ErrCodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) *ExportError {
	return &ExportError{Code: ErrCodeConflict, Message: fmt.Sprintf(format, args...)}
}

func NewCountMismatchError(format string, args ...any) *ExportError {
	return &ExportError{Code: ErrCodeCountMismatch, Message: fmt.Sprintf(format, args...)}
}

func errorCode(err error) string {
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsConfigurationError reports whether err is a broken-mapping-document error.
func IsConfigurationError(err error) bool {
	return errorCode(err) == ErrCodeConfiguration
}

// IsConflictError reports whether err is a source or emission conflict.
func IsConflictError(err error) bool {
	return errorCode(err) == ErrCodeConflict
}

// IsCountMismatchError reports whether err is a file/display-info count mismatch.
func IsCountMismatchError(err error) bool {
	return errorCode(err) == ErrCodeCountMismatch
}
