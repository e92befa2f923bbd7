// Package errortypes classifies failures at the boundary between the index
// manager, the service and the shells.
package errortypes

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// ErrorType represents the category of a failure.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeCorruption ErrorType = "corruption"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError is an error with a category, a user facing message and optional
// structured fields.
type AppError struct {
	Err       error
	Type      ErrorType
	Message   string
	StackInfo string
	Fields    map[string]any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Err.Error()
}

// Unwrap supports errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithField attaches a key/value pair that LogError emits.
func (e *AppError) WithField(key string, value any) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "testing/") && !strings.Contains(frame.File, "/go/src/") {
			fmt.Fprintf(&builder, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return builder.String()
}

func newAppError(errType ErrorType, err error, message string) *AppError {
	if err == nil {
		err = errors.New(message)
		message = ""
	}
	return &AppError{
		Err:       err,
		Type:      errType,
		Message:   message,
		StackInfo: captureStack(),
		Fields:    make(map[string]any),
	}
}

// ValidationError reports bad caller input.
func ValidationError(err error, message string) *AppError {
	return newAppError(ErrorTypeValidation, err, message)
}

// StorageError reports a failed read or write of persisted state.
func StorageError(err error, message string) *AppError {
	return newAppError(ErrorTypeStorage, err, message)
}

// CorruptionError reports persisted state that cannot be used.
func CorruptionError(err error, message string) *AppError {
	return newAppError(ErrorTypeCorruption, err, message)
}

// ConfigError reports an invalid configuration.
func ConfigError(err error, message string) *AppError {
	return newAppError(ErrorTypeConfig, err, message)
}

// ExternalError reports a failure of a remote collaborator.
func ExternalError(err error, message string) *AppError {
	return newAppError(ErrorTypeExternal, err, message)
}

// InternalError reports a bug.
func InternalError(err error, message string) *AppError {
	return newAppError(ErrorTypeInternal, err, message)
}

// LogError logs err with its type and fields. A nil logger uses slog.Default.
func LogError(logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		args := []any{
			"type", string(appErr.Type),
			"error", appErr.Err.Error(),
		}
		for k, v := range appErr.Fields {
			args = append(args, k, v)
		}
		if appErr.StackInfo != "" {
			logger.Debug("stack", "trace", appErr.StackInfo)
		}
		msg := appErr.Message
		if msg == "" {
			msg = appErr.Err.Error()
		}
		logger.Error(msg, args...)
		return
	}
	logger.Error(err.Error(), "error", err)
}

// TypeOf returns the category of err, or "" for unclassified errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool { return TypeOf(err) == ErrorTypeValidation }

// IsStorageError checks if an error is a storage error.
func IsStorageError(err error) bool { return TypeOf(err) == ErrorTypeStorage }

// IsCorruptionError checks if an error is a corruption error.
func IsCorruptionError(err error) bool { return TypeOf(err) == ErrorTypeCorruption }

// IsConfigError checks if an error is a config error.
func IsConfigError(err error) bool { return TypeOf(err) == ErrorTypeConfig }

// IsExternalError checks if an error is an external error.
func IsExternalError(err error) bool { return TypeOf(err) == ErrorTypeExternal }
