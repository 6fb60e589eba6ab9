// Package data предоставляет экранам приложения чтение и запись записей медпункта.
// Каждая запись сначала попадает в локальное хранилище и очередь операций,
// на сервер ее отправляет движок синхронизации.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/iudanet/infirmary/internal/client/queue"
	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/clock"
	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/internal/validation"
)

// ErrDeleted returned when reading or editing a record that is deleted locally
var ErrDeleted = errors.New("record is deleted")

// Service определяет интерфейс клиентского data сервиса
type Service interface {
	Create(ctx context.Context, entityType models.EntityType, payload json.RawMessage) (*models.Entity, error)
	Update(ctx context.Context, entityType models.EntityType, id string, patch json.RawMessage) (*models.Entity, error)
	Delete(ctx context.Context, entityType models.EntityType, id string) error
	Get(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error)
	List(ctx context.Context, entityType models.EntityType, filter storage.ListFilter) ([]*models.Entity, error)
	Pending(ctx context.Context, entityType models.EntityType, id string) (*models.PendingOperation, error)
}

type service struct {
	store  storage.LocalStore
	clock  *clock.Clock
	logger *slog.Logger
}

// NewService creates a new data service
func NewService(store storage.LocalStore, clk *clock.Clock, logger *slog.Logger) Service {
	return &service{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Create проверяет payload, сохраняет запись локально и ставит create в очередь
func (s *service) Create(ctx context.Context, entityType models.EntityType, payload json.RawMessage) (*models.Entity, error) {
	if err := validation.ValidatePayload(entityType, payload); err != nil {
		return nil, err
	}

	// ID в payload не хранится: идентификатор живет в записи
	data := stripID(payload)

	now := s.clock.Now()
	entity := &models.Entity{
		ID:        uuid.NewString(),
		Type:      entityType,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	op := &models.PendingOperation{
		EntityType: entityType,
		EntityID:   entity.ID,
		Kind:       models.OpCreate,
		Payload:    data,
	}

	queued, err := s.store.SaveLocalChange(ctx, entity, op)
	if err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", entity.Key(), err)
	}

	s.logger.Debug("Record created locally", "entity", entity.Key(), "temp_id", queued.TempID)
	return entity, nil
}

// Update накладывает patch на текущие поля записи. В очередь уходит полный
// набор полей, основанный на версии сервера, которую видел пользователь.
func (s *service) Update(ctx context.Context, entityType models.EntityType, id string, patch json.RawMessage) (*models.Entity, error) {
	current, err := s.live(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	merged, err := queue.Overlay(current.Data, stripID(patch))
	if err != nil {
		return nil, models.NewValidationError("payload", "%v", err)
	}
	if err := validation.ValidatePayload(entityType, merged); err != nil {
		return nil, err
	}

	entity := current.Clone()
	entity.Data = merged
	entity.UpdatedAt = s.clock.Now()

	op := &models.PendingOperation{
		EntityType:  entityType,
		EntityID:    id,
		Kind:        models.OpUpdate,
		Payload:     merged,
		BaseVersion: current.Version,
	}
	if _, err := s.store.SaveLocalChange(ctx, entity, op); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", entity.Key(), err)
	}

	return entity, nil
}

// Delete помечает запись удаленной. Запись, которую сервер еще не видел,
// удаляется вместе с ее create из очереди.
func (s *service) Delete(ctx context.Context, entityType models.EntityType, id string) error {
	current, err := s.live(ctx, entityType, id)
	if err != nil {
		return err
	}

	entity := current.Clone()
	entity.Deleted = true
	entity.UpdatedAt = s.clock.Now()

	op := &models.PendingOperation{
		EntityType:  entityType,
		EntityID:    id,
		Kind:        models.OpDelete,
		BaseVersion: current.Version,
	}
	queued, err := s.store.SaveLocalChange(ctx, entity, op)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", entity.Key(), err)
	}

	if queued == nil {
		s.logger.Debug("Unsynced record dropped", "entity", entity.Key())
	}
	return nil
}

// Get returns a live record
func (s *service) Get(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
	return s.live(ctx, entityType, id)
}

// List returns records of the type ordered by ID
func (s *service) List(ctx context.Context, entityType models.EntityType, filter storage.ListFilter) ([]*models.Entity, error) {
	if !entityType.Valid() {
		return nil, models.NewValidationError("type", "unknown entity type %q", entityType)
	}

	entities, err := s.store.ListEntities(ctx, entityType, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", entityType, err)
	}
	return entities, nil
}

// Pending returns the queued operation of the record, storage.ErrOperationNotFound if it is synced
func (s *service) Pending(ctx context.Context, entityType models.EntityType, id string) (*models.PendingOperation, error) {
	return s.store.PendingForEntity(ctx, entityType, id)
}

func (s *service) live(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
	if !entityType.Valid() {
		return nil, models.NewValidationError("type", "unknown entity type %q", entityType)
	}

	entity, err := s.store.GetEntity(ctx, entityType, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", models.EntityKey(entityType, id), err)
	}
	if entity.Deleted {
		return nil, fmt.Errorf("%s: %w", entity.Key(), ErrDeleted)
	}
	return entity, nil
}

func stripID(raw json.RawMessage) json.RawMessage {
	if !gjson.GetBytes(raw, "id").Exists() {
		return raw
	}
	out, err := sjson.DeleteBytes(raw, "id")
	if err != nil {
		return raw
	}
	return out
}
