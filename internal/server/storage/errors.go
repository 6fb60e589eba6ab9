package storage

import (
	"errors"
	"fmt"

	"github.com/iudanet/infirmary/internal/models"
)

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrEntityNotFound indicates that the record was never created
	ErrEntityNotFound = errors.New("entity not found")

	// ErrVersionMismatch is matched by errors.Is for any *VersionConflictError
	ErrVersionMismatch = errors.New("version mismatch")
)

// VersionConflictError base_version изменения не совпала с текущей версией записи.
// Current содержит запись в том виде, в котором она хранится на сервере.
type VersionConflictError struct {
	Current     *models.Entity
	BaseVersion int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version mismatch: base %d, current %d", e.BaseVersion, e.Current.Version)
}

func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionMismatch
}
