package storage

import (
	"context"
	"time"

	"github.com/iudanet/infirmary/internal/models"
)

//go:generate moq -out entitystorage_mock.go . EntityStorage

// ListFilter ограничивает выборку List
type ListFilter struct {
	UpdatedAfter   time.Time // UpdatedAfter только записи, измененные строго позже
	Limit          int       // Limit 0 - без ограничения
	Offset         int       // Offset пропустить первые N записей
	IncludeDeleted bool      // IncludeDeleted включать soft deleted записи
	StaleOnly      bool      // StaleOnly только записи, ждущие перечитывания с сервера
}

// Matches reports whether e passes the time and tombstone conditions of the filter
func (f ListFilter) Matches(e *models.Entity) bool {
	if e.Deleted && !f.IncludeDeleted {
		return false
	}
	if f.StaleOnly && !e.Stale {
		return false
	}
	if !f.UpdatedAfter.IsZero() && !e.UpdatedAt.After(f.UpdatedAfter) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already ordered slice
func (f ListFilter) Page(entities []*models.Entity) []*models.Entity {
	if f.Offset > 0 {
		if f.Offset >= len(entities) {
			return []*models.Entity{}
		}
		entities = entities[f.Offset:]
	}
	if f.Limit > 0 && len(entities) > f.Limit {
		entities = entities[:f.Limit]
	}
	return entities
}

// EntityStorage defines interface for storing entity records on client
type EntityStorage interface {
	// GetEntity retrieves a record by type and ID (tombstones included)
	// Returns ErrEntityNotFound if record doesn't exist
	GetEntity(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error)

	// ListEntities returns records of the type ordered by ID
	ListEntities(ctx context.Context, entityType models.EntityType, filter ListFilter) ([]*models.Entity, error)

	// UpsertEntity stores the record if it is newer than the stored one (last-write-wins).
	// Returns false when the stored record was kept.
	UpsertEntity(ctx context.Context, entity *models.Entity) (bool, error)

	// ReplaceEntity stores a server-canonical record unconditionally
	ReplaceEntity(ctx context.Context, entity *models.Entity) error

	// DeleteEntity removes the record physically (not a tombstone)
	DeleteEntity(ctx context.Context, entityType models.EntityType, id string) error
}
