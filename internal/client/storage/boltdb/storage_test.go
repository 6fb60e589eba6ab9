package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/models"
)

// createTestStorage создает временное хранилище для тестов
func createTestStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestNew_Success(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "testdb.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	// Проверяем, что бакеты существуют
	err = store.db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketAuth, bucketQueue, bucketQueueIndex, bucketMetadata, bucketConflicts, bucketEntities} {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		for _, et := range models.EntityTypes {
			if tx.Bucket(bucketEntities).Bucket([]byte(et)) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "db"))
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestClose(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "testdb.db"))
	require.NoError(t, err)

	require.NoError(t, store.Close())
	assert.Nil(t, store.db)

	// Повторное закрытие безопасно
	require.NoError(t, store.Close())

	_, err = store.GetEntity(context.Background(), models.EntityPatient, "p-1")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "testdb.db")

	store, err := New(ctx, dbPath)
	require.NoError(t, err)

	entity := testEntity(models.EntityPatient, "p-1", time.Now().UTC(), `{"first_name":"Ana","last_name":"Silva"}`)
	_, err = store.SaveLocalChange(ctx, entity, createOp(models.EntityPatient, "p-1", `{"first_name":"Ana","last_name":"Silva"}`))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetEntity(ctx, models.EntityPatient, "p-1")
	require.NoError(t, err)
	assert.JSONEq(t, string(entity.Data), string(got.Data))

	count, err := reopened.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStorage_SyncMetadata(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// Первый запуск: пустые метаданные
	meta, err := store.GetSyncMetadata(ctx)
	require.NoError(t, err)
	assert.True(t, meta.LastSyncDate.IsZero())
	assert.False(t, meta.SyncInProgress)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	meta.LastSyncDate = now
	meta.PendingOperationsCount = 3
	meta.LastError = "server unreachable"
	meta.AdvanceCursor(models.EntityPatient, now.Add(-time.Minute))
	require.NoError(t, store.SaveSyncMetadata(ctx, meta))

	got, err := store.GetSyncMetadata(ctx)
	require.NoError(t, err)
	assert.True(t, now.Equal(got.LastSyncDate))
	assert.Equal(t, 3, got.PendingOperationsCount)
	assert.Equal(t, "server unreachable", got.LastError)
	assert.True(t, now.Add(-time.Minute).Equal(got.Cursor(models.EntityPatient)))
}

func TestStorage_Auth(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	_, err := store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	ok, err := store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	auth := &storage.AuthData{
		Username:    "nurse",
		UserID:      "user-1",
		AccessToken: "token",
		ServerURL:   "http://localhost:8080",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}
	require.NoError(t, store.SaveAuth(ctx, auth))

	got, err := store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth, got)

	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Истекший токен
	auth.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	require.NoError(t, store.SaveAuth(ctx, auth))
	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.DeleteAuth(ctx))
	assert.ErrorIs(t, store.DeleteAuth(ctx), storage.ErrAuthNotFound)
}
