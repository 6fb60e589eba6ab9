// Package push отправляет одну операцию очереди на сервер и применяет
// каноническую запись сервера к локальному хранилищу.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/infirmary/internal/client/api"
	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/clock"
	"github.com/iudanet/infirmary/internal/models"
)

// Pusher отправляет операции и применяет ответы сервера
type Pusher struct {
	api    api.ClientAPI
	store  storage.LocalStore
	clock  *clock.Clock
	logger *slog.Logger
}

// New creates a Pusher. clock may be nil.
func New(apiClient api.ClientAPI, store storage.LocalStore, clk *clock.Clock, logger *slog.Logger) *Pusher {
	return &Pusher{
		api:    apiClient,
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Push отправляет операцию. force пропускает проверку версии на сервере.
// При успехе запись сервера сохраняется локально, операция удаляется из очереди.
// Ошибки API возвращаются как есть (ConflictError, TransientError, ...).
func (p *Pusher) Push(ctx context.Context, op *models.PendingOperation, force bool) (*models.Entity, error) {
	var (
		canonical *models.Entity
		err       error
	)

	switch op.Kind {
	case models.OpCreate:
		canonical, err = p.api.Create(ctx, op.EntityType, op.EntityID, op.Payload)
	case models.OpUpdate:
		canonical, err = p.api.Update(ctx, op.EntityType, op.EntityID, op.Payload, op.BaseVersion, force)
	case models.OpDelete:
		canonical, err = p.api.Delete(ctx, op.EntityType, op.EntityID, op.BaseVersion, force)
		if errors.Is(err, api.ErrNotFound) {
			// На сервере записи нет: удалять нечего
			return nil, p.dropDeleted(ctx, op)
		}
	default:
		return nil, models.NewValidationError("kind", "unknown operation kind %q", op.Kind)
	}
	if err != nil {
		return nil, err
	}

	if err := p.Confirm(ctx, op, canonical); err != nil {
		return nil, err
	}
	return canonical, nil
}

// Confirm применяет подтвержденную сервером запись.
// Если пользователь изменил сущность, пока запрос был в пути, операция не
// удаляется, а перебазируется на новую версию сервера.
func (p *Pusher) Confirm(ctx context.Context, op *models.PendingOperation, canonical *models.Entity) error {
	if p.clock != nil {
		p.clock.Observe(canonical.UpdatedAt)
	}

	if canonical.ID != op.EntityID {
		if err := p.store.RemapEntityID(ctx, op.EntityType, op.EntityID, canonical.ID); err != nil {
			return fmt.Errorf("failed to remap %s to %s: %w", op.Key(), canonical.ID, err)
		}
		p.logger.Debug("Entity ID confirmed by server", "temp_id", op.TempID, "local_id", op.EntityID, "server_id", canonical.ID)
	}

	current, err := p.store.GetOperation(ctx, op.TempID)
	switch {
	case errors.Is(err, storage.ErrOperationNotFound):
		// Операцию уже убрали (например, разрешением конфликта)
		return p.store.ReplaceEntity(ctx, canonical)
	case err != nil:
		return fmt.Errorf("failed to reload operation %s: %w", op.TempID, err)
	}

	if current.UpdatedAt.Equal(op.UpdatedAt) {
		if err := p.store.ReplaceEntity(ctx, canonical); err != nil {
			return fmt.Errorf("failed to store canonical %s: %w", canonical.Key(), err)
		}
		if err := p.store.DequeueOperation(ctx, op.TempID); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
			return fmt.Errorf("failed to dequeue %s: %w", op.TempID, err)
		}
		return nil
	}

	return p.rebase(ctx, current, canonical)
}

// rebase переносит более новую локальную правку на только что подтвержденную версию
func (p *Pusher) rebase(ctx context.Context, current *models.PendingOperation, canonical *models.Entity) error {
	if current.Kind == models.OpCreate {
		current.Kind = models.OpUpdate
	}
	current.BaseVersion = canonical.Version
	if err := p.store.UpdateOperation(ctx, current); err != nil {
		return fmt.Errorf("failed to rebase %s: %w", current.TempID, err)
	}

	local, err := p.store.GetEntity(ctx, canonical.Type, canonical.ID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil
		}
		return err
	}
	local.Version = canonical.Version
	if err := p.store.ReplaceEntity(ctx, local); err != nil {
		return fmt.Errorf("failed to update local version of %s: %w", local.Key(), err)
	}

	p.logger.Debug("Operation rebased on confirmed version",
		"temp_id", current.TempID,
		"entity", current.Key(),
		"base_version", canonical.Version)
	return nil
}

// AdoptServer принимает серверную версию записи и отбрасывает локальную операцию.
// server == nil означает, что записи на сервере нет.
func (p *Pusher) AdoptServer(ctx context.Context, entityType models.EntityType, id, tempID string, server *models.Entity) error {
	if server == nil {
		if err := p.store.DeleteEntity(ctx, entityType, id); err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
			return fmt.Errorf("failed to drop local %s: %w", models.EntityKey(entityType, id), err)
		}
	} else {
		adopted := server.Clone()
		if local, err := p.store.GetEntity(ctx, entityType, id); err == nil && adopted.CreatedAt.IsZero() {
			adopted.CreatedAt = local.CreatedAt
		}
		if p.clock != nil {
			p.clock.Observe(adopted.UpdatedAt)
		}
		if err := p.store.ReplaceEntity(ctx, adopted); err != nil {
			return fmt.Errorf("failed to adopt server %s: %w", adopted.Key(), err)
		}
	}

	if err := p.store.DequeueOperation(ctx, tempID); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
		return fmt.Errorf("failed to dequeue %s: %w", tempID, err)
	}
	return nil
}

// Fetch читает текущую запись сервера. nil без ошибки: записи на сервере нет.
func (p *Pusher) Fetch(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
	server, err := p.api.Get(ctx, entityType, id)
	if errors.Is(err, api.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return server, nil
}

func (p *Pusher) dropDeleted(ctx context.Context, op *models.PendingOperation) error {
	return p.AdoptServer(ctx, op.EntityType, op.EntityID, op.TempID, nil)
}
