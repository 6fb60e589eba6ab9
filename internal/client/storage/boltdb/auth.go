package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/infirmary/internal/client/storage"
)

// Сессия одна на базу
var sessionKey = []byte("session")

func authBucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	bucket := tx.Bucket(bucketAuth)
	if bucket == nil {
		return nil, fmt.Errorf("bucket %q not found", bucketAuth)
	}
	return bucket, nil
}

// SaveAuth replaces the stored session
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket, err := authBucket(tx)
		if err != nil {
			return err
		}
		return putJSON(bucket, sessionKey, auth)
	})
}

// GetAuth returns the stored session
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	auth := &storage.AuthData{}

	err := s.view(func(tx *bbolt.Tx) error {
		bucket, err := authBucket(tx)
		if err != nil {
			return err
		}

		raw := bucket.Get(sessionKey)
		if raw == nil {
			return storage.ErrAuthNotFound
		}
		if err := json.Unmarshal(raw, auth); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return auth, nil
}

// DeleteAuth drops the session on logout
func (s *Storage) DeleteAuth(ctx context.Context) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket, err := authBucket(tx)
		if err != nil {
			return err
		}
		if bucket.Get(sessionKey) == nil {
			return storage.ErrAuthNotFound
		}
		return bucket.Delete(sessionKey)
	})
}

// IsAuthenticated reports whether a non-expired session is stored
func (s *Storage) IsAuthenticated(ctx context.Context) (bool, error) {
	auth, err := s.GetAuth(ctx)
	switch {
	case errors.Is(err, storage.ErrAuthNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return !auth.Expired(s.now()), nil
}
