package storage

import (
	"context"

	"github.com/iudanet/infirmary/internal/models"
)

//go:generate moq -out localstore_mock.go . LocalStore

// LocalStore is the durable client store used by the data service and the sync engine
type LocalStore interface {
	EntityStorage
	QueueStorage
	MetadataStorage

	// SaveLocalChange writes the locally edited record and enqueues op in one
	// transaction. When op cancels a queued create, the record is removed
	// instead and the returned operation is nil.
	SaveLocalChange(ctx context.Context, entity *models.Entity, op *models.PendingOperation) (*models.PendingOperation, error)
}
