package storage

import (
	"context"

	"github.com/iudanet/infirmary/internal/models"
)

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines interface for storing sync metadata on client
type MetadataStorage interface {
	// GetSyncMetadata returns stored metadata, or empty metadata on first run
	GetSyncMetadata(ctx context.Context) (*models.SyncMetadata, error)

	// SaveSyncMetadata overwrites stored metadata
	SaveSyncMetadata(ctx context.Context, meta *models.SyncMetadata) error
}
