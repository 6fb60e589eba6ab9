package storage

import (
	"context"

	"github.com/iudanet/infirmary/internal/models"
)

//go:generate moq -out queuestorage_mock.go . QueueStorage

// QueueStorage defines interface for the durable queue of pending operations.
// Implementations collapse operations on the same entity atomically.
type QueueStorage interface {
	// EnqueueOperation validates op and appends it, or folds it into the
	// operation already queued for the same entity. Returns the resulting
	// queued operation, or nil when the two operations cancelled out.
	EnqueueOperation(ctx context.Context, op *models.PendingOperation) (*models.PendingOperation, error)

	// DequeueOperation removes the operation after confirmed success
	// Returns ErrOperationNotFound if there is no such operation
	DequeueOperation(ctx context.Context, tempID string) error

	// GetOperation retrieves a queued operation by temp ID
	GetOperation(ctx context.Context, tempID string) (*models.PendingOperation, error)

	// ListOperations returns all queued operations in FIFO (Seq) order
	ListOperations(ctx context.Context) ([]*models.PendingOperation, error)

	// UpdateOperation rewrites retry bookkeeping of a queued operation
	UpdateOperation(ctx context.Context, op *models.PendingOperation) error

	// PendingForEntity returns the operation queued for the entity
	// Returns ErrOperationNotFound if the entity has no queued operation
	PendingForEntity(ctx context.Context, entityType models.EntityType, id string) (*models.PendingOperation, error)

	// CountPending returns the queue size (failed operations included)
	CountPending(ctx context.Context) (int, error)

	// RemapEntityID replaces a temporary entity ID confirmed by the server under
	// another ID: the local record, queued operations and payload references.
	RemapEntityID(ctx context.Context, entityType models.EntityType, oldID, newID string) error
}
