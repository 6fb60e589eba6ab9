package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/infirmary/internal/models"
)

var keySyncMetadata = []byte("sync")

// GetSyncMetadata returns stored sync metadata
// Returns empty metadata if no sync has been performed yet
func (s *Storage) GetSyncMetadata(ctx context.Context) (*models.SyncMetadata, error) {
	meta := &models.SyncMetadata{}

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		data := bucket.Get(keySyncMetadata)
		if data == nil {
			// Первый запуск: метаданные пустые
			return nil
		}

		return json.Unmarshal(data, meta)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get sync metadata: %w", err)
	}

	return meta, nil
}

// SaveSyncMetadata overwrites stored sync metadata
func (s *Storage) SaveSyncMetadata(ctx context.Context, meta *models.SyncMetadata) error {
	err := s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}
		return putJSON(bucket, keySyncMetadata, meta)
	})
	if err != nil {
		return fmt.Errorf("failed to save sync metadata: %w", err)
	}
	return nil
}
