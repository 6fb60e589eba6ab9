// Package sync реализует цикл синхронизации клиента: push очереди, затем pull
// изменений сервера. Одновременно выполняется не больше одного цикла.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	httpClient "github.com/iudanet/infirmary/internal/client/api"
	"github.com/iudanet/infirmary/internal/client/queue"
	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/clock"
	"github.com/iudanet/infirmary/internal/models"
)

// DefaultPageSize размер страницы при pull
const DefaultPageSize = 100

// State состояние машины синхронизации
type State string

const (
	StateIdle    State = "idle"
	StatePushing State = "pushing"
	StatePulling State = "pulling"
	StateError   State = "error"
)

// Active reports whether a cycle is running in this state
func (s State) Active() bool {
	return s == StatePushing || s == StatePulling
}

// Connectivity сообщает текущее состояние связи
type Connectivity interface {
	Online() bool
}

//go:generate moq -out conflicts_mock.go . ConflictRecorder

// ConflictRecorder принимает обнаруженные при push конфликты
type ConflictRecorder interface {
	Record(ctx context.Context, op *models.PendingOperation, server *models.Entity, message string) (*models.Conflict, error)
	Forget(ctx context.Context, tempID string) error
	Has(tempID string) bool
}

// Pusher отправляет одну операцию очереди
type Pusher interface {
	Push(ctx context.Context, op *models.PendingOperation, force bool) (*models.Entity, error)
}

// Options зависимости Engine
type Options struct {
	API          httpClient.ClientAPI
	Store        storage.LocalStore
	Queue        *queue.Queue
	Pusher       Pusher
	Conflicts    ConflictRecorder
	Connectivity Connectivity
	Clock        *clock.Clock
	Logger       *slog.Logger
	PageSize     int
}

// Engine выполняет циклы синхронизации
type Engine struct {
	api       httpClient.ClientAPI
	store     storage.LocalStore
	queue     *queue.Queue
	pusher    Pusher
	conflicts ConflictRecorder
	conn      Connectivity
	clock     *clock.Clock
	logger    *slog.Logger
	last      *SyncResult
	now       func() time.Time
	state     State
	pageSize  int
	mu        stdsync.Mutex
}

// NewEngine creates a sync engine
func NewEngine(opts Options) *Engine {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Engine{
		api:       opts.API,
		store:     opts.Store,
		queue:     opts.Queue,
		pusher:    opts.Pusher,
		conflicts: opts.Conflicts,
		conn:      opts.Connectivity,
		clock:     opts.Clock,
		logger:    opts.Logger,
		now:       time.Now,
		state:     StateIdle,
		pageSize:  pageSize,
	}
}

// State returns the current state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// LastResult returns the result of the last completed cycle, nil before the first one
func (e *Engine) LastResult() *SyncResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.last == nil {
		return nil
	}
	return e.last.Clone()
}

// Metadata returns sync metadata with live in-progress flag and queue size
func (e *Engine) Metadata(ctx context.Context) (*models.SyncMetadata, error) {
	meta, err := e.store.GetSyncMetadata(ctx)
	if err != nil {
		return nil, err
	}

	// флаг в хранилище мог остаться true после аварийного завершения процесса
	meta.SyncInProgress = e.State().Active()

	count, err := e.store.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending operations: %w", err)
	}
	meta.PendingOperationsCount = count

	return meta, nil
}

// FullSync выполняет один цикл синхронизации.
// Без связи возвращает *models.OfflineError. Если цикл уже идет, второй не
// запускается: возвращается последний результат с Skipped=true.
// Недоступность сервера прерывает цикл, очередь остается нетронутой.
func (e *Engine) FullSync(ctx context.Context) (*SyncResult, error) {
	if e.conn != nil && !e.conn.Online() {
		return nil, &models.OfflineError{Op: "full sync"}
	}

	e.mu.Lock()
	if e.state.Active() {
		cached := e.cachedLocked()
		e.mu.Unlock()
		e.logger.Debug("Sync already in progress, returning cached result")
		return cached, nil
	}
	e.state = StatePushing
	e.mu.Unlock()

	return e.run(ctx)
}

func (e *Engine) cachedLocked() *SyncResult {
	var cached *SyncResult
	if e.last != nil {
		cached = e.last.Clone()
	} else {
		cached = newResult(time.Time{})
	}
	cached.Skipped = true
	return cached
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = s
}

func (e *Engine) run(ctx context.Context) (*SyncResult, error) {
	result := newResult(e.now().UTC())
	e.logger.Info("Starting synchronization")

	meta, err := e.store.GetSyncMetadata(ctx)
	if err != nil {
		e.setState(StateIdle)
		return nil, fmt.Errorf("failed to load sync metadata: %w", err)
	}
	meta.SyncInProgress = true
	if err := e.store.SaveSyncMetadata(ctx, meta); err != nil {
		e.logger.Warn("Failed to save sync metadata", "error", err)
	}

	if err := e.api.Health(ctx); err != nil {
		if !models.IsTransient(err) {
			err = &models.TransientError{Err: err}
		}
		return result, e.abort(ctx, meta, result, fmt.Errorf("server unreachable: %w", err))
	}

	var errs []error

	pushErrs, err := e.pushAll(ctx, result)
	if err != nil {
		return result, e.abort(ctx, meta, result, err)
	}
	errs = append(errs, pushErrs...)

	e.setState(StatePulling)
	pullErrs, err := e.pullAll(ctx, meta, result)
	if err != nil {
		return result, e.abort(ctx, meta, result, err)
	}
	errs = append(errs, pullErrs...)

	result.FinishedAt = e.now().UTC()
	for _, err := range errs {
		result.Errors = append(result.Errors, err.Error())
	}

	meta.LastSyncDate = result.FinishedAt
	meta.SyncInProgress = false
	meta.LastError = ""
	if joined := errors.Join(errs...); joined != nil {
		meta.LastError = joined.Error()
	}
	e.saveFinalMetadata(ctx, meta)

	e.mu.Lock()
	e.state = StateIdle
	e.last = result.Clone()
	e.mu.Unlock()

	push, pull := result.PushTotal(), result.PullTotal()
	e.logger.Info("Synchronization completed",
		"pushed", push.Success,
		"conflicts", push.Conflicts,
		"push_errors", push.Errors,
		"pulled", pull.Updated,
		"pull_skipped", pull.Skipped,
		"errors", len(errs))

	return result, nil
}

// abort завершает цикл без обновления lastSyncDate и оставляет состояние Error
func (e *Engine) abort(ctx context.Context, meta *models.SyncMetadata, result *SyncResult, cause error) error {
	result.FinishedAt = e.now().UTC()
	result.Errors = append(result.Errors, cause.Error())

	meta.SyncInProgress = false
	meta.LastError = cause.Error()
	e.saveFinalMetadata(ctx, meta)

	e.setState(StateError)
	e.logger.Error("Synchronization aborted", "error", cause)
	return cause
}

func (e *Engine) saveFinalMetadata(ctx context.Context, meta *models.SyncMetadata) {
	// метаданные сохраняются даже если ctx уже отменен
	ctx = context.WithoutCancel(ctx)

	count, err := e.store.CountPending(ctx)
	if err != nil {
		e.logger.Warn("Failed to count pending operations", "error", err)
	} else {
		meta.PendingOperationsCount = count
	}
	if err := e.store.SaveSyncMetadata(ctx, meta); err != nil {
		e.logger.Warn("Failed to save sync metadata", "error", err)
	}
}

// pushAll отправляет операции очереди по приоритету типа и порядку постановки.
// Ошибка отдельной операции не останавливает остальные; возвращаемая ошибка
// означает, что цикл надо прервать.
func (e *Engine) pushAll(ctx context.Context, result *SyncResult) ([]error, error) {
	ops, err := e.queue.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	if len(ops) > 0 {
		e.logger.Info("Pushing local changes", "count", len(ops))
	}

	var errs []error
	for _, queued := range ops {
		if err := ctx.Err(); err != nil {
			return errs, fmt.Errorf("push interrupted: %w", err)
		}

		// Подтверждение предыдущей операции могло переписать эту (новый ID сущности в payload)
		op, err := e.store.GetOperation(ctx, queued.TempID)
		switch {
		case errors.Is(err, storage.ErrOperationNotFound):
			continue
		case err != nil:
			return errs, fmt.Errorf("failed to reload operation: %w", err)
		case op.IsFailed():
			continue
		}

		stats := result.push(op.EntityType)
		_, err = e.pusher.Push(ctx, op, false)

		if err == nil {
			stats.Success++
			if e.conflicts != nil && e.conflicts.Has(op.TempID) {
				if err := e.conflicts.Forget(ctx, op.TempID); err != nil {
					e.logger.Warn("Failed to drop stale conflict", "temp_id", op.TempID, "error", err)
				}
			}
			continue
		}

		if ce, ok := models.AsConflict(err); ok {
			stats.Conflicts++
			if e.conflicts != nil {
				if _, err := e.conflicts.Record(ctx, op, ce.Server, ce.Message); err != nil {
					errs = append(errs, fmt.Errorf("record conflict %s: %w", op.Key(), err))
				}
			}
			continue
		}

		if errors.Is(err, httpClient.ErrUnauthorized) {
			return errs, fmt.Errorf("push %s: %w", op.Key(), err)
		}
		if ctx.Err() != nil {
			return errs, fmt.Errorf("push interrupted: %w", ctx.Err())
		}

		stats.Errors++
		errs = append(errs, fmt.Errorf("push %s: %w", op.Key(), err))
		failed, rerr := e.queue.RecordFailure(ctx, op, err)
		if rerr != nil {
			errs = append(errs, rerr)
		}
		e.logger.Warn("Push failed",
			"temp_id", op.TempID,
			"entity", op.Key(),
			"kind", op.Kind,
			"retry_count", op.RetryCount,
			"failed", failed,
			"error", err)
	}

	return errs, nil
}

// pullAll загружает изменения сервера по каждому типу от его курсора
func (e *Engine) pullAll(ctx context.Context, meta *models.SyncMetadata, result *SyncResult) ([]error, error) {
	var errs []error

	for _, t := range models.EntityTypes {
		err := e.pullType(ctx, t, meta, result.pull(t))
		switch {
		case err == nil:
		case errors.Is(err, httpClient.ErrUnauthorized), ctx.Err() != nil:
			return errs, fmt.Errorf("pull %s: %w", t, err)
		default:
			errs = append(errs, fmt.Errorf("pull %s: %w", t, err))
			e.logger.Warn("Pull failed", "type", t, "error", err)
		}
	}

	return errs, nil
}

func (e *Engine) pullType(ctx context.Context, t models.EntityType, meta *models.SyncMetadata, stats *PullStats) error {
	if err := e.refreshStale(ctx, t, stats); err != nil {
		return err
	}

	cursor := meta.Cursor(t)

	for {
		page, err := e.api.List(ctx, t, cursor, e.pageSize)
		if err != nil {
			return err
		}

		for _, remote := range page.Entities {
			if remote.UpdatedAt.After(cursor) {
				cursor = remote.UpdatedAt
			}
			if e.clock != nil {
				e.clock.Observe(remote.UpdatedAt)
			}

			if err := e.applyRemote(ctx, remote, stats); err != nil {
				// курсор фиксируется до записи, которую не удалось применить
				return err
			}
			meta.AdvanceCursor(t, remote.UpdatedAt)
		}

		if !page.HasMore || len(page.Entities) == 0 {
			return nil
		}
	}
}

func (e *Engine) applyRemote(ctx context.Context, remote *models.Entity, stats *PullStats) error {
	_, err := e.store.PendingForEntity(ctx, remote.Type, remote.ID)
	switch {
	case err == nil:
		// локальная правка еще не отправлена: ее судьбу решит push
		stats.Skipped++
		return nil
	case !errors.Is(err, storage.ErrOperationNotFound):
		return fmt.Errorf("failed to check queue for %s: %w", remote.Key(), err)
	}

	changed, err := e.store.UpsertEntity(ctx, remote)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", remote.Key(), err)
	}
	if changed {
		stats.Updated++
	}
	return nil
}

// refreshStale перечитывает записи с отброшенными правками. Курсор pull их
// уже прошел, поэтому обычная выборка их не вернет.
func (e *Engine) refreshStale(ctx context.Context, t models.EntityType, stats *PullStats) error {
	stale, err := e.store.ListEntities(ctx, t, storage.ListFilter{IncludeDeleted: true, StaleOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list stale %s records: %w", t, err)
	}

	for _, local := range stale {
		// новая локальная правка заменит запись после push
		_, err := e.store.PendingForEntity(ctx, t, local.ID)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, storage.ErrOperationNotFound):
			return fmt.Errorf("failed to check queue for %s: %w", local.Key(), err)
		}

		if err := e.Refresh(ctx, t, local.ID); err != nil {
			return err
		}
		stats.Updated++
	}
	return nil
}

// Discard отменяет локальную операцию без отправки. Запись помечается
// устаревшей и перечитывается с сервера в следующем цикле (или сразу через Refresh).
func (e *Engine) Discard(ctx context.Context, tempID string) (*models.PendingOperation, error) {
	op, err := e.store.GetOperation(ctx, tempID)
	if err != nil {
		return nil, err
	}
	if err := e.queue.Discard(ctx, tempID); err != nil {
		return nil, err
	}

	local, err := e.store.GetEntity(ctx, op.EntityType, op.EntityID)
	switch {
	case errors.Is(err, storage.ErrEntityNotFound):
		return op, nil
	case err != nil:
		return op, fmt.Errorf("failed to load %s: %w", op.Key(), err)
	}

	local.Stale = true
	if err := e.store.ReplaceEntity(ctx, local); err != nil {
		return op, fmt.Errorf("failed to mark %s stale: %w", op.Key(), err)
	}
	return op, nil
}

// Refresh перечитывает запись с сервера, например после отмены локальной операции
func (e *Engine) Refresh(ctx context.Context, entityType models.EntityType, id string) error {
	remote, err := e.api.Get(ctx, entityType, id)
	if errors.Is(err, httpClient.ErrNotFound) {
		if err := e.store.DeleteEntity(ctx, entityType, id); err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
			return err
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", models.EntityKey(entityType, id), err)
	}

	if e.clock != nil {
		e.clock.Observe(remote.UpdatedAt)
	}
	return e.store.ReplaceEntity(ctx, remote)
}
