package models

import (
	"errors"
	"fmt"
)

// ErrOffline is matched by errors.Is for any *OfflineError
var ErrOffline = errors.New("offline")

// OfflineError отказ запускать цикл синхронизации без сети.
type OfflineError struct {
	Op string
}

func (e *OfflineError) Error() string {
	if e.Op == "" {
		return "no connectivity"
	}
	return fmt.Sprintf("%s: no connectivity", e.Op)
}

func (e *OfflineError) Is(target error) bool {
	return target == ErrOffline
}

// ValidationError некорректная локальная мутация, отклоняется до постановки в очередь.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the field
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError версия на сервере не совпала с базовой версией операции.
// Server содержит текущую запись сервера (nil если запись удалена физически).
type ConflictError struct {
	Server  *Entity
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return "version conflict"
	}
	return "version conflict: " + e.Message
}

// TransientError временный сбой сети или сервера, операция будет повторена.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ResolutionError принудительная отправка при разрешении конфликта не удалась.
type ResolutionError struct {
	Err    error
	TempID string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve conflict %s: %v", e.TempID, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err (or anything it wraps) is a TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// AsConflict extracts a ConflictError from err
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
