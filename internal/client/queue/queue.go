// Package queue реализует политику очереди исходящих операций:
// порядок отправки, учет неудачных попыток и ручное управление
// операциями, исчерпавшими попытки.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/models"
)

// Queue оборачивает QueueStorage политикой повторов
type Queue struct {
	store      storage.QueueStorage
	logger     *slog.Logger
	now        func() time.Time
	maxRetries int
}

// New создает очередь. maxRetries <= 0 означает models.DefaultMaxRetries.
func New(store storage.QueueStorage, maxRetries int, logger *slog.Logger) *Queue {
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}
	return &Queue{
		store:      store,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
	}
}

// MaxRetries returns the retry budget of a single operation
func (q *Queue) MaxRetries() int {
	return q.maxRetries
}

// Pending возвращает операции, готовые к отправке, в порядке отправки:
// по приоритету типа, внутри типа по Seq. Failed операции не включаются.
func (q *Queue) Pending(ctx context.Context) ([]*models.PendingOperation, error) {
	ops, err := q.store.ListOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	pending := make([]*models.PendingOperation, 0, len(ops))
	for _, op := range ops {
		if !op.IsFailed() {
			pending = append(pending, op)
		}
	}
	SortForPush(pending)
	return pending, nil
}

// Failed возвращает операции, исчерпавшие попытки
func (q *Queue) Failed(ctx context.Context) ([]*models.PendingOperation, error) {
	ops, err := q.store.ListOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	var failed []*models.PendingOperation
	for _, op := range ops {
		if op.IsFailed() {
			failed = append(failed, op)
		}
	}
	return failed, nil
}

// All возвращает всю очередь в порядке отправки
func (q *Queue) All(ctx context.Context) ([]*models.PendingOperation, error) {
	ops, err := q.store.ListOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	SortForPush(ops)
	return ops, nil
}

// RecordFailure увеличивает счетчик попыток операции и помечает ее failed
// при достижении лимита. Возвращает true, если операция стала failed.
// Счетчик увеличивается у сохраненной версии: правка, свернутая в операцию
// во время отправки, не теряется.
func (q *Queue) RecordFailure(ctx context.Context, op *models.PendingOperation, cause error) (bool, error) {
	updated, err := q.store.GetOperation(ctx, op.TempID)
	if err != nil {
		return false, fmt.Errorf("failed to reload %s: %w", op.TempID, err)
	}
	updated.RetryCount++
	updated.UpdatedAt = q.now()
	if cause != nil {
		updated.LastError = cause.Error()
	}
	if updated.RetryCount >= q.maxRetries {
		updated.Status = models.StatusFailed
	}

	if err := q.store.UpdateOperation(ctx, updated); err != nil {
		return false, fmt.Errorf("failed to record failure of %s: %w", op.TempID, err)
	}

	if updated.IsFailed() {
		q.logger.Warn("Operation exhausted retries",
			"temp_id", op.TempID,
			"entity", op.Key(),
			"retries", updated.RetryCount,
			"error", updated.LastError)
	}

	*op = *updated
	return updated.IsFailed(), nil
}

// Retry возвращает failed операцию в работу с полным бюджетом попыток
func (q *Queue) Retry(ctx context.Context, tempID string) error {
	op, err := q.store.GetOperation(ctx, tempID)
	if err != nil {
		return err
	}

	op.Status = models.StatusPending
	op.RetryCount = 0
	op.LastError = ""
	op.UpdatedAt = q.now()

	if err := q.store.UpdateOperation(ctx, op); err != nil {
		return fmt.Errorf("failed to retry %s: %w", tempID, err)
	}
	q.logger.Info("Operation re-queued", "temp_id", tempID, "entity", op.Key())
	return nil
}

// Discard удаляет операцию из очереди без отправки
func (q *Queue) Discard(ctx context.Context, tempID string) error {
	if err := q.store.DequeueOperation(ctx, tempID); err != nil {
		return err
	}
	q.logger.Info("Operation discarded", "temp_id", tempID)
	return nil
}

// Complete удаляет подтвержденную сервером операцию
func (q *Queue) Complete(ctx context.Context, tempID string) error {
	return q.store.DequeueOperation(ctx, tempID)
}

// Count returns the queue size
func (q *Queue) Count(ctx context.Context) (int, error) {
	return q.store.CountPending(ctx)
}

// SortForPush упорядочивает операции по приоритету типа, затем по Seq
func SortForPush(ops []*models.PendingOperation) {
	sort.SliceStable(ops, func(i, j int) bool {
		pi, pj := ops[i].EntityType.Priority(), ops[j].EntityType.Priority()
		if pi != pj {
			return pi < pj
		}
		return ops[i].Seq < ops[j].Seq
	})
}
