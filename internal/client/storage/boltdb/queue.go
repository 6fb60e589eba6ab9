package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/iudanet/infirmary/internal/client/queue"
	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/internal/validation"
)

// Ключи queue_index: "e:<type>/<id>" и "t:<temp_id>" указывают на Seq операции
func entityIndexKey(entityType models.EntityType, id string) []byte {
	return []byte("e:" + models.EntityKey(entityType, id))
}

func tempIndexKey(tempID string) []byte {
	return []byte("t:" + tempID)
}

type queueTx struct {
	queue *bbolt.Bucket
	index *bbolt.Bucket
}

func openQueue(tx *bbolt.Tx) (*queueTx, error) {
	q := &queueTx{queue: tx.Bucket(bucketQueue), index: tx.Bucket(bucketQueueIndex)}
	if q.queue == nil || q.index == nil {
		return nil, fmt.Errorf("queue buckets not found")
	}
	return q, nil
}

func (q *queueTx) getBySeq(seq []byte) (*models.PendingOperation, error) {
	data := q.queue.Get(seq)
	if data == nil {
		return nil, storage.ErrOperationNotFound
	}
	op := &models.PendingOperation{}
	if err := json.Unmarshal(data, op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
	}
	return op, nil
}

func (q *queueTx) lookup(indexKey []byte) (*models.PendingOperation, error) {
	seq := q.index.Get(indexKey)
	if seq == nil {
		return nil, storage.ErrOperationNotFound
	}
	return q.getBySeq(seq)
}

func (q *queueTx) put(op *models.PendingOperation) error {
	key := seqKey(op.Seq)
	if err := putJSON(q.queue, key, op); err != nil {
		return err
	}
	if err := q.index.Put(entityIndexKey(op.EntityType, op.EntityID), key); err != nil {
		return fmt.Errorf("failed to index operation: %w", err)
	}
	if err := q.index.Put(tempIndexKey(op.TempID), key); err != nil {
		return fmt.Errorf("failed to index operation: %w", err)
	}
	return nil
}

func (q *queueTx) remove(op *models.PendingOperation) error {
	if err := q.queue.Delete(seqKey(op.Seq)); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	if err := q.index.Delete(entityIndexKey(op.EntityType, op.EntityID)); err != nil {
		return fmt.Errorf("failed to unindex operation: %w", err)
	}
	if err := q.index.Delete(tempIndexKey(op.TempID)); err != nil {
		return fmt.Errorf("failed to unindex operation: %w", err)
	}
	return nil
}

// enqueueTx валидирует операцию и сворачивает ее с уже стоящей в очереди
func (s *Storage) enqueueTx(tx *bbolt.Tx, op *models.PendingOperation) (*models.PendingOperation, queue.Action, error) {
	if err := validation.ValidateOperation(op); err != nil {
		return nil, queue.ActionKeep, err
	}

	q, err := openQueue(tx)
	if err != nil {
		return nil, queue.ActionKeep, err
	}

	existing, err := q.lookup(entityIndexKey(op.EntityType, op.EntityID))
	if err != nil && err != storage.ErrOperationNotFound {
		return nil, queue.ActionKeep, err
	}

	now := s.now()
	result, action, err := queue.Collapse(existing, op, now)
	if err != nil {
		return nil, action, err
	}

	switch action {
	case queue.ActionAppend:
		result = op.Clone()
		seq, err := q.queue.NextSequence()
		if err != nil {
			return nil, action, fmt.Errorf("failed to allocate sequence: %w", err)
		}
		result.Seq = seq
		if result.TempID == "" {
			result.TempID = uuid.NewString()
		}
		if result.CreatedAt.IsZero() {
			result.CreatedAt = now
		}
		result.UpdatedAt = now
		result.Status = models.StatusPending
		return result, action, q.put(result)

	case queue.ActionReplace:
		return result, action, q.put(result)

	case queue.ActionDrop:
		return nil, action, q.remove(existing)
	}

	return result, action, nil
}

// EnqueueOperation appends op or folds it into the queued operation of the same entity
func (s *Storage) EnqueueOperation(ctx context.Context, op *models.PendingOperation) (*models.PendingOperation, error) {
	var result *models.PendingOperation

	err := s.update(func(tx *bbolt.Tx) error {
		var err error
		result, _, err = s.enqueueTx(tx, op)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DequeueOperation removes the operation after confirmed success
func (s *Storage) DequeueOperation(ctx context.Context, tempID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		q, err := openQueue(tx)
		if err != nil {
			return err
		}
		op, err := q.lookup(tempIndexKey(tempID))
		if err != nil {
			return err
		}
		return q.remove(op)
	})
}

// GetOperation retrieves a queued operation by temp ID
func (s *Storage) GetOperation(ctx context.Context, tempID string) (*models.PendingOperation, error) {
	var op *models.PendingOperation

	err := s.view(func(tx *bbolt.Tx) error {
		q, err := openQueue(tx)
		if err != nil {
			return err
		}
		op, err = q.lookup(tempIndexKey(tempID))
		return err
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// ListOperations returns all queued operations in Seq order
func (s *Storage) ListOperations(ctx context.Context) ([]*models.PendingOperation, error) {
	ops := []*models.PendingOperation{}

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}
		return bucket.ForEach(func(k, v []byte) error {
			var op models.PendingOperation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			ops = append(ops, &op)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	return ops, nil
}

// UpdateOperation rewrites a queued operation in place
func (s *Storage) UpdateOperation(ctx context.Context, op *models.PendingOperation) error {
	return s.update(func(tx *bbolt.Tx) error {
		q, err := openQueue(tx)
		if err != nil {
			return err
		}
		current, err := q.lookup(tempIndexKey(op.TempID))
		if err != nil {
			return err
		}

		// Позиция и цель операции неизменны
		updated := op.Clone()
		updated.Seq = current.Seq
		updated.EntityType = current.EntityType
		updated.EntityID = current.EntityID
		return q.put(updated)
	})
}

// PendingForEntity returns the operation queued for the entity
func (s *Storage) PendingForEntity(ctx context.Context, entityType models.EntityType, id string) (*models.PendingOperation, error) {
	var op *models.PendingOperation

	err := s.view(func(tx *bbolt.Tx) error {
		q, err := openQueue(tx)
		if err != nil {
			return err
		}
		op, err = q.lookup(entityIndexKey(entityType, id))
		return err
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// CountPending returns the queue size
func (s *Storage) CountPending(ctx context.Context) (int, error) {
	count := 0

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}
		c := bucket.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// RemapEntityID replaces a temporary entity ID everywhere it is referenced
func (s *Storage) RemapEntityID(ctx context.Context, entityType models.EntityType, oldID, newID string) error {
	if oldID == newID {
		return nil
	}

	return s.update(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entityType)
		if err != nil {
			return err
		}

		// Переносим локальную запись под новый ID, если сервер ее еще не прислал
		if data := bucket.Get([]byte(oldID)); data != nil {
			if bucket.Get([]byte(newID)) == nil {
				var entity models.Entity
				if err := json.Unmarshal(data, &entity); err != nil {
					return fmt.Errorf("failed to unmarshal entity %s: %w", oldID, err)
				}
				entity.ID = newID
				if err := putJSON(bucket, []byte(newID), &entity); err != nil {
					return err
				}
			}
			if err := bucket.Delete([]byte(oldID)); err != nil {
				return fmt.Errorf("failed to delete entity %s: %w", oldID, err)
			}
		}

		if err := remapEntityRefs(tx, oldID, newID); err != nil {
			return err
		}
		return remapQueue(tx, entityType, oldID, newID, s.now())
	})
}

// remapEntityRefs переписывает ссылки *_id в записях всех типов
func remapEntityRefs(tx *bbolt.Tx, oldID, newID string) error {
	for _, t := range models.EntityTypes {
		bucket, err := entityBucket(tx, t)
		if err != nil {
			return err
		}

		updates := map[string]*models.Entity{}
		err = bucket.ForEach(func(k, v []byte) error {
			var entity models.Entity
			if err := json.Unmarshal(v, &entity); err != nil {
				return fmt.Errorf("failed to unmarshal entity %s: %w", k, err)
			}
			if data, changed := queue.RemapRefs(entity.Data, oldID, newID); changed {
				entity.Data = data
				updates[string(k)] = &entity
			}
			return nil
		})
		if err != nil {
			return err
		}

		// bbolt запрещает модификацию bucket внутри ForEach
		for id, entity := range updates {
			if err := putJSON(bucket, []byte(id), entity); err != nil {
				return err
			}
		}
	}
	return nil
}

// remapQueue переписывает цель и ссылки payload во всех операциях очереди
func remapQueue(tx *bbolt.Tx, entityType models.EntityType, oldID, newID string, now time.Time) error {
	q, err := openQueue(tx)
	if err != nil {
		return err
	}

	var retargeted, rewritten []*models.PendingOperation
	err = q.queue.ForEach(func(k, v []byte) error {
		var op models.PendingOperation
		if err := json.Unmarshal(v, &op); err != nil {
			return fmt.Errorf("failed to unmarshal operation: %w", err)
		}

		payload, changed := queue.RemapRefs(op.Payload, oldID, newID)
		if changed {
			op.Payload = payload
			op.Touch(now)
		}
		if op.EntityType == entityType && op.EntityID == oldID {
			retargeted = append(retargeted, &op)
		} else if changed {
			rewritten = append(rewritten, &op)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, op := range retargeted {
		if err := q.index.Delete(entityIndexKey(op.EntityType, op.EntityID)); err != nil {
			return fmt.Errorf("failed to unindex operation: %w", err)
		}
		op.EntityID = newID
		if err := q.put(op); err != nil {
			return err
		}
	}
	for _, op := range rewritten {
		if err := q.put(op); err != nil {
			return err
		}
	}
	return nil
}
