package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/infirmary/internal/models"
)

// SaveConflict stores the conflict under its temp ID
func (s *Storage) SaveConflict(ctx context.Context, c *models.Conflict) error {
	err := s.update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketConflicts), []byte(c.TempID), c)
	})
	if err != nil {
		return fmt.Errorf("failed to save conflict %s: %w", c.TempID, err)
	}
	return nil
}

// DeleteConflict removes the conflict
func (s *Storage) DeleteConflict(ctx context.Context, tempID string) error {
	err := s.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConflicts).Delete([]byte(tempID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete conflict %s: %w", tempID, err)
	}
	return nil
}

// ListConflicts returns all stored conflicts
func (s *Storage) ListConflicts(ctx context.Context) ([]*models.Conflict, error) {
	var conflicts []*models.Conflict

	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConflicts).ForEach(func(k, v []byte) error {
			var c models.Conflict
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to unmarshal conflict %s: %w", k, err)
			}
			conflicts = append(conflicts, &c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	return conflicts, nil
}
