package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/infirmary/internal/client/queue"
	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/models"
)

// entityBucket возвращает bucket типа сущности
func entityBucket(tx *bbolt.Tx, entityType models.EntityType) (*bbolt.Bucket, error) {
	if !entityType.Valid() {
		return nil, models.NewValidationError("type", "unknown entity type %q", entityType)
	}
	root := tx.Bucket(bucketEntities)
	if root == nil {
		return nil, fmt.Errorf("entities bucket not found")
	}
	bucket := root.Bucket([]byte(entityType))
	if bucket == nil {
		return nil, fmt.Errorf("%s bucket not found", entityType)
	}
	return bucket, nil
}

func getEntity(bucket *bbolt.Bucket, id string) (*models.Entity, error) {
	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, storage.ErrEntityNotFound
	}

	entity := &models.Entity{}
	if err := json.Unmarshal(data, entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity %s: %w", id, err)
	}
	return entity, nil
}

// GetEntity retrieves a record by type and ID
func (s *Storage) GetEntity(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
	var entity *models.Entity

	err := s.view(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entityType)
		if err != nil {
			return err
		}
		entity, err = getEntity(bucket, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// ListEntities returns records of the type ordered by ID
func (s *Storage) ListEntities(ctx context.Context, entityType models.EntityType, filter storage.ListFilter) ([]*models.Entity, error) {
	entities := []*models.Entity{}

	err := s.view(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entityType)
		if err != nil {
			return err
		}

		// Ключи bbolt отсортированы, обход курсором дает порядок по ID
		return bucket.ForEach(func(k, v []byte) error {
			var entity models.Entity
			if err := json.Unmarshal(v, &entity); err != nil {
				return fmt.Errorf("failed to unmarshal entity %s: %w", k, err)
			}
			if filter.Matches(&entity) {
				entities = append(entities, &entity)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", entityType, err)
	}

	return filter.Page(entities), nil
}

// UpsertEntity stores the record if it is newer than the stored one
func (s *Storage) UpsertEntity(ctx context.Context, entity *models.Entity) (bool, error) {
	applied := false

	err := s.update(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entity.Type)
		if err != nil {
			return err
		}

		current, err := getEntity(bucket, entity.ID)
		switch {
		case err == nil:
			if !entity.IsNewerThan(current) {
				return nil
			}
		case err != storage.ErrEntityNotFound:
			return err
		}

		applied = true
		return putJSON(bucket, []byte(entity.ID), entity)
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert %s: %w", entity.Key(), err)
	}

	return applied, nil
}

// ReplaceEntity stores a server-canonical record unconditionally
func (s *Storage) ReplaceEntity(ctx context.Context, entity *models.Entity) error {
	err := s.update(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entity.Type)
		if err != nil {
			return err
		}
		return putJSON(bucket, []byte(entity.ID), entity)
	})
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", entity.Key(), err)
	}
	return nil
}

// DeleteEntity removes the record physically
func (s *Storage) DeleteEntity(ctx context.Context, entityType models.EntityType, id string) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entityType)
		if err != nil {
			return err
		}
		if bucket.Get([]byte(id)) == nil {
			return storage.ErrEntityNotFound
		}
		return bucket.Delete([]byte(id))
	})
}

// SaveLocalChange writes the local record and enqueues op in one transaction
func (s *Storage) SaveLocalChange(ctx context.Context, entity *models.Entity, op *models.PendingOperation) (*models.PendingOperation, error) {
	var result *models.PendingOperation

	err := s.update(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entity.Type)
		if err != nil {
			return err
		}

		var action queue.Action
		result, action, err = s.enqueueTx(tx, op)
		if err != nil {
			return err
		}

		// Создание и удаление до синхронизации взаимно уничтожаются
		if action == queue.ActionDrop {
			if err := bucket.Delete([]byte(entity.ID)); err != nil {
				return fmt.Errorf("failed to drop local record: %w", err)
			}
			return nil
		}

		return putJSON(bucket, []byte(entity.ID), entity)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
