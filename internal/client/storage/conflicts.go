package storage

import (
	"context"

	"github.com/iudanet/infirmary/internal/models"
)

//go:generate moq -out conflicts_mock.go . ConflictStorage

// ConflictStorage сохраняет неразрешенные конфликты между запусками клиента
type ConflictStorage interface {
	// SaveConflict stores c keyed by its TempID, overwriting a previous record
	SaveConflict(ctx context.Context, c *models.Conflict) error

	// DeleteConflict removes the conflict; missing records are not an error
	DeleteConflict(ctx context.Context, tempID string) error

	// ListConflicts returns every stored conflict in no particular order
	ListConflicts(ctx context.Context) ([]*models.Conflict, error)
}
