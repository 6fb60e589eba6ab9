// Package conflict хранит неразрешенные конфликты синхронизации и применяет
// выбранное пользователем разрешение.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/models"
)

const eventBufferSize = 16

var (
	// ErrConflictNotFound returned when no conflict is recorded for the temp ID
	ErrConflictNotFound = errors.New("conflict not found")
	// ErrResolutionInProgress returned when the conflict is already being resolved
	ErrResolutionInProgress = errors.New("conflict resolution already in progress")
)

//go:generate moq -out pusher_mock.go . Pusher

// Pusher отправляет операцию на сервер и применяет серверную запись
type Pusher interface {
	Push(ctx context.Context, op *models.PendingOperation, force bool) (*models.Entity, error)
	Fetch(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error)
	AdoptServer(ctx context.Context, entityType models.EntityType, id, tempID string, server *models.Entity) error
}

// EventType тип изменения набора конфликтов
type EventType string

const (
	EventDetected  EventType = "detected"
	EventResolving EventType = "resolving"
	EventResolved  EventType = "resolved"
	EventFailed    EventType = "failed"
)

// Event уведомление подписчиков об изменении конфликта
type Event struct {
	Conflict *models.Conflict
	Err      error
	Type     EventType
}

// Snapshot состояние резолвера для отображения в UI
type Snapshot struct {
	Conflicts     []*models.Conflict
	ConflictCount int
	IsResolving   bool
}

// Outcome результат разрешения одного конфликта в ResolveAllConflicts
type Outcome struct {
	Err    error
	TempID string
}

// Resolver держит неразрешенные конфликты, по одному на TempID
type Resolver struct {
	pusher    Pusher
	ops       storage.QueueStorage
	store     storage.ConflictStorage
	logger    *slog.Logger
	now       func() time.Time
	conflicts map[string]*models.Conflict
	inFlight  map[string]struct{}
	subs      []chan Event
	mu        sync.RWMutex
	subMu     sync.RWMutex
}

// New creates a Resolver and loads conflicts left from previous runs
func New(ctx context.Context, pusher Pusher, ops storage.QueueStorage, store storage.ConflictStorage, logger *slog.Logger) (*Resolver, error) {
	r := &Resolver{
		pusher:    pusher,
		ops:       ops,
		store:     store,
		logger:    logger,
		now:       time.Now,
		conflicts: make(map[string]*models.Conflict),
		inFlight:  make(map[string]struct{}),
	}

	stored, err := store.ListConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load conflicts: %w", err)
	}
	for _, c := range stored {
		r.conflicts[c.TempID] = c
	}

	return r, nil
}

// Record сохраняет конфликт для операции. Повторное обнаружение того же
// TempID перезаписывает данные сервера, но сохраняет исходное время обнаружения.
func (r *Resolver) Record(ctx context.Context, op *models.PendingOperation, server *models.Entity, message string) (*models.Conflict, error) {
	c := models.ConflictFromOperation(op, server, message, r.now().UTC())

	r.mu.Lock()
	if prev, ok := r.conflicts[c.TempID]; ok {
		c.DetectedAt = prev.DetectedAt
	}
	if err := r.store.SaveConflict(ctx, c); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to save conflict %s: %w", c.TempID, err)
	}
	r.conflicts[c.TempID] = c
	r.mu.Unlock()

	r.logger.Info("Conflict detected",
		"temp_id", c.TempID,
		"entity", op.Key(),
		"base_version", c.BaseVersion,
		"server_version", c.ServerVersion)
	r.broadcast(Event{Type: EventDetected, Conflict: c})

	return c, nil
}

// Forget убирает конфликт без разрешения: операция уже подтверждена или удалена из очереди
func (r *Resolver) Forget(ctx context.Context, tempID string) error {
	r.mu.Lock()
	c, ok := r.conflicts[tempID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	if err := r.store.DeleteConflict(ctx, tempID); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to delete conflict %s: %w", tempID, err)
	}
	delete(r.conflicts, tempID)
	r.mu.Unlock()

	r.broadcast(Event{Type: EventResolved, Conflict: c})
	return nil
}

// Get returns the conflict recorded for tempID
func (r *Resolver) Get(tempID string) (*models.Conflict, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conflicts[tempID]
	return c, ok
}

// Has reports whether a conflict is recorded for tempID
func (r *Resolver) Has(tempID string) bool {
	_, ok := r.Get(tempID)
	return ok
}

// List returns unresolved conflicts ordered by detection time
func (r *Resolver) List() []*models.Conflict {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listLocked()
}

func (r *Resolver) listLocked() []*models.Conflict {
	out := make([]*models.Conflict, 0, len(r.conflicts))
	for _, c := range r.conflicts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.Before(out[j].DetectedAt)
		}
		return out[i].TempID < out[j].TempID
	})
	return out
}

// Count returns the number of unresolved conflicts
func (r *Resolver) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conflicts)
}

// Snapshot returns the conflicts together with the resolving flag
func (r *Resolver) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Snapshot{
		Conflicts:     r.listLocked(),
		ConflictCount: len(r.conflicts),
		IsResolving:   len(r.inFlight) > 0,
	}
}

// ResolveConflict применяет разрешение к одному конфликту.
//
// server: локальная операция удаляется из очереди, в хранилище записывается
// версия сервера (или локальная запись удаляется, если на сервере ее нет).
// Если сервер не сообщил свою версию при конфликте, она сначала перечитывается.
// local: локальная версия отправляется на сервер без проверки версии.
// При ошибке возвращается *models.ResolutionError, конфликт остается.
func (r *Resolver) ResolveConflict(ctx context.Context, tempID string, resolution models.Resolution) error {
	c, err := r.begin(tempID)
	if err != nil {
		return err
	}
	defer r.end(tempID)

	r.broadcast(Event{Type: EventResolving, Conflict: c})

	switch resolution {
	case models.ResolutionServer:
		err = r.adoptServer(ctx, c)
	case models.ResolutionLocal:
		err = r.pushLocal(ctx, c)
	default:
		return models.NewValidationError("resolution", "unknown resolution %q", resolution)
	}
	if err != nil {
		r.logger.Warn("Conflict resolution failed", "temp_id", tempID, "resolution", resolution, "error", err)
		r.broadcast(Event{Type: EventFailed, Conflict: c, Err: err})
		return &models.ResolutionError{TempID: tempID, Err: err}
	}

	if err := r.Forget(ctx, tempID); err != nil {
		return err
	}
	r.logger.Info("Conflict resolved", "temp_id", tempID, "entity", models.EntityKey(c.EntityType, c.EntityID), "resolution", resolution)
	return nil
}

func (r *Resolver) adoptServer(ctx context.Context, c *models.Conflict) error {
	server := c.ServerEntity()
	if c.ServerUnknown {
		var err error
		if server, err = r.pusher.Fetch(ctx, c.EntityType, c.EntityID); err != nil {
			return fmt.Errorf("failed to fetch server copy: %w", err)
		}
	}
	return r.pusher.AdoptServer(ctx, c.EntityType, c.EntityID, c.TempID, server)
}

func (r *Resolver) pushLocal(ctx context.Context, c *models.Conflict) error {
	op, err := r.ops.GetOperation(ctx, c.TempID)
	if err != nil {
		return fmt.Errorf("failed to load queued operation: %w", err)
	}
	_, err = r.pusher.Push(ctx, op, true)
	return err
}

// ResolveAllConflicts применяет одно разрешение ко всем конфликтам по порядку
// обнаружения. Ошибка одного конфликта не останавливает обработку остальных.
func (r *Resolver) ResolveAllConflicts(ctx context.Context, resolution models.Resolution) []Outcome {
	conflicts := r.List()
	outcomes := make([]Outcome, 0, len(conflicts))

	for _, c := range conflicts {
		err := r.ResolveConflict(ctx, c.TempID, resolution)
		outcomes = append(outcomes, Outcome{TempID: c.TempID, Err: err})
	}

	return outcomes
}

func (r *Resolver) begin(tempID string) (*models.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conflicts[tempID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConflictNotFound, tempID)
	}
	if _, busy := r.inFlight[tempID]; busy {
		return nil, fmt.Errorf("%w: %s", ErrResolutionInProgress, tempID)
	}
	r.inFlight[tempID] = struct{}{}
	return c, nil
}

func (r *Resolver) end(tempID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inFlight, tempID)
}

// Subscribe returns a channel receiving conflict events
func (r *Resolver) Subscribe() <-chan Event {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	ch := make(chan Event, eventBufferSize)
	r.subs = append(r.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel
func (r *Resolver) Unsubscribe(ch <-chan Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for i, sub := range r.subs {
		if sub == ch {
			close(sub)
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			break
		}
	}
}

func (r *Resolver) broadcast(event Event) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()

	for _, sub := range r.subs {
		select {
		case sub <- event:
		default:
			// подписчик не успевает читать, событие пропускаем
		}
	}
}
