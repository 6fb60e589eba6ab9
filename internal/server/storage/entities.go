package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iudanet/infirmary/internal/models"
)

//go:generate moq -out entities_mock.go . EntityStorage

// ListQuery параметры выборки изменений для pull
type ListQuery struct {
	UpdatedAfter time.Time         // UpdatedAfter строгая нижняя граница updated_at
	Type         models.EntityType // Type тип сущности
	Limit        int               // Limit максимальный размер страницы
}

// Mutation изменение записи от клиента
type Mutation struct {
	Type        models.EntityType
	ID          string
	UserID      string          // UserID автор изменения
	Data        json.RawMessage // Data новое содержимое, пусто для удаления
	BaseVersion int64           // BaseVersion версия, на которой основано изменение
	Force       bool            // Force пропустить проверку версии
}

// EntityStorage хранит канонические версии записей.
// Каждая запись изменяет version на 1 и получает updated_at строго больше
// всех ранее выданных.
type EntityStorage interface {
	// GetEntity returns the record including tombstones.
	// Returns ErrEntityNotFound if the record was never created
	GetEntity(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error)

	// ListEntities returns records changed after q.UpdatedAfter ordered by updated_at.
	// hasMore reports that the page was cut by the limit
	ListEntities(ctx context.Context, q ListQuery) (entities []*models.Entity, hasMore bool, err error)

	// CreateEntity stores a new record with version 1.
	// Replaying a create with a known id returns the stored record and created=false
	CreateEntity(ctx context.Context, m Mutation) (entity *models.Entity, created bool, err error)

	// UpdateEntity replaces data of an existing record.
	// Returns *VersionConflictError when BaseVersion is stale and Force is false
	UpdateEntity(ctx context.Context, m Mutation) (*models.Entity, error)

	// DeleteEntity turns the record into a tombstone.
	// Deleting a tombstone again returns it unchanged
	DeleteEntity(ctx context.Context, m Mutation) (*models.Entity, error)
}
