package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/models"
)

func entity(id string, updatedAt time.Time, data string) *models.Entity {
	return &models.Entity{
		ID:        id,
		Type:      models.EntityPatient,
		Data:      json.RawMessage(data),
		UpdatedAt: updatedAt,
	}
}

func TestStore_UpsertEntity(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	applied, err := s.UpsertEntity(ctx, entity("p-1", base, `{"v":1}`))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.UpsertEntity(ctx, entity("p-1", base.Add(-time.Second), `{"v":0}`))
	require.NoError(t, err)
	assert.False(t, applied, "Older write never regresses the record")

	applied, err = s.UpsertEntity(ctx, entity("p-1", base.Add(time.Second), `{"v":2}`))
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := s.GetEntity(ctx, models.EntityPatient, "p-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.Data))

	// Возвращаемые записи - копии
	got.Data = json.RawMessage(`{"v":99}`)
	again, err := s.GetEntity(ctx, models.EntityPatient, "p-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(again.Data))
}

func TestStore_ListEntities_OrderedByID(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.ReplaceEntity(ctx, entity(id, now, `{}`)))
	}

	list, err := s.ListEntities(ctx, models.EntityPatient, storage.ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestStore_QueueCollapseAndRemap(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	created, err := s.SaveLocalChange(ctx, entity("tmp-1", now, `{"first_name":"Ana"}`), &models.PendingOperation{
		EntityType: models.EntityPatient,
		EntityID:   "tmp-1",
		Kind:       models.OpCreate,
		Payload:    json.RawMessage(`{"first_name":"Ana"}`),
	})
	require.NoError(t, err)

	merged, err := s.EnqueueOperation(ctx, &models.PendingOperation{
		EntityType: models.EntityPatient,
		EntityID:   "tmp-1",
		Kind:       models.OpUpdate,
		Payload:    json.RawMessage(`{"phone":"555"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, created.TempID, merged.TempID)
	assert.Equal(t, models.OpCreate, merged.Kind)
	assert.JSONEq(t, `{"first_name":"Ana","phone":"555"}`, string(merged.Payload))

	count, err := s.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.RemapEntityID(ctx, models.EntityPatient, "tmp-1", "srv-1"))

	op, err := s.PendingForEntity(ctx, models.EntityPatient, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, created.TempID, op.TempID)

	_, err = s.GetEntity(ctx, models.EntityPatient, "tmp-1")
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)

	require.NoError(t, s.DequeueOperation(ctx, op.TempID))
	assert.ErrorIs(t, s.DequeueOperation(ctx, op.TempID), storage.ErrOperationNotFound)
}

func TestStore_SyncMetadataIsCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	meta, err := s.GetSyncMetadata(ctx)
	require.NoError(t, err)
	meta.AdvanceCursor(models.EntityPatient, time.Now())

	stored, err := s.GetSyncMetadata(ctx)
	require.NoError(t, err)
	assert.True(t, stored.Cursor(models.EntityPatient).IsZero(), "Metadata changes require SaveSyncMetadata")

	require.NoError(t, s.SaveSyncMetadata(ctx, meta))
	stored, err = s.GetSyncMetadata(ctx)
	require.NoError(t, err)
	assert.False(t, stored.Cursor(models.EntityPatient).IsZero())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = s.UpsertEntity(ctx, entity("p-1", base.Add(time.Duration(i*20+j)*time.Millisecond), `{}`))
				_, _ = s.ListEntities(ctx, models.EntityPatient, storage.ListFilter{})
			}
		}(i)
	}
	wg.Wait()

	got, err := s.GetEntity(ctx, models.EntityPatient, "p-1")
	require.NoError(t, err)
	assert.Equal(t, base.Add(199*time.Millisecond), got.UpdatedAt, "Newest write wins regardless of arrival order")
}
