package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/infirmary/internal/client/queue"
	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/client/storage/memory"
	"github.com/iudanet/infirmary/internal/models"
)

func newTestQueue(t *testing.T, maxRetries int) (*queue.Queue, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return queue.New(store, maxRetries, logger), store
}

func enqueue(t *testing.T, store *memory.Store, entityType models.EntityType, id string, kind models.OperationKind) *models.PendingOperation {
	t.Helper()
	op, err := store.EnqueueOperation(context.Background(), &models.PendingOperation{
		EntityType: entityType,
		EntityID:   id,
		Kind:       kind,
		Payload:    json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return op
}

func TestQueue_Pending_PriorityThenFIFO(t *testing.T) {
	q, store := newTestQueue(t, 0)

	enqueue(t, store, models.EntityVaccination, "v-1", models.OpCreate)
	enqueue(t, store, models.EntityPatient, "p-1", models.OpCreate)
	enqueue(t, store, models.EntityMedication, "m-1", models.OpUpdate)
	enqueue(t, store, models.EntityPatient, "p-2", models.OpUpdate)
	enqueue(t, store, models.EntityConsultation, "c-1", models.OpCreate)

	ops, err := q.Pending(context.Background())
	require.NoError(t, err)

	var keys []string
	for _, op := range ops {
		keys = append(keys, op.Key())
	}
	assert.Equal(t, []string{
		"patient/p-1",
		"patient/p-2",
		"consultation/c-1",
		"vaccination/v-1",
		"medication/m-1",
	}, keys)
}

func TestQueue_RecordFailure_MarksFailedAtMax(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t, 3)
	op := enqueue(t, store, models.EntityPatient, "p-1", models.OpUpdate)

	cause := errors.New("server unavailable")
	for i := 1; i <= 2; i++ {
		failed, err := q.RecordFailure(ctx, op, cause)
		require.NoError(t, err)
		assert.False(t, failed)
		assert.Equal(t, i, op.RetryCount)
	}

	failed, err := q.RecordFailure(ctx, op, cause)
	require.NoError(t, err)
	assert.True(t, failed)

	stored, err := store.GetOperation(ctx, op.TempID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Equal(t, 3, stored.RetryCount)
	assert.Equal(t, "server unavailable", stored.LastError)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "Failed operations are not pushed automatically")

	surfaced, err := q.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, surfaced, 1)
	assert.Equal(t, op.TempID, surfaced[0].TempID)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "Failed operations stay in the queue")
}

func TestQueue_RetryAndDiscard(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t, 1)
	op := enqueue(t, store, models.EntityPatient, "p-1", models.OpUpdate)

	failed, err := q.RecordFailure(ctx, op, errors.New("boom"))
	require.NoError(t, err)
	require.True(t, failed)

	require.NoError(t, q.Retry(ctx, op.TempID))
	stored, err := store.GetOperation(ctx, op.TempID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Zero(t, stored.RetryCount)
	assert.Empty(t, stored.LastError)

	require.NoError(t, q.Discard(ctx, op.TempID))
	_, err = store.GetOperation(ctx, op.TempID)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	assert.ErrorIs(t, q.Retry(ctx, "missing"), storage.ErrOperationNotFound)
	assert.ErrorIs(t, q.Discard(ctx, "missing"), storage.ErrOperationNotFound)
}

func TestQueue_DefaultMaxRetries(t *testing.T) {
	q, _ := newTestQueue(t, 0)
	assert.Equal(t, models.DefaultMaxRetries, q.MaxRetries())
}

func TestCollapse(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	op := func(kind models.OperationKind, payload string) *models.PendingOperation {
		return &models.PendingOperation{
			TempID:      "t-1",
			EntityType:  models.EntityPatient,
			EntityID:    "p-1",
			Kind:        kind,
			Payload:     json.RawMessage(payload),
			BaseVersion: 7,
			Seq:         4,
		}
	}

	tests := []struct {
		name       string
		existing   *models.PendingOperation
		incoming   *models.PendingOperation
		wantAction queue.Action
		wantKind   models.OperationKind
		wantErr    bool
	}{
		{name: "nothing queued", existing: nil, incoming: op(models.OpUpdate, `{}`), wantAction: queue.ActionAppend, wantKind: models.OpUpdate},
		{name: "create + create", existing: op(models.OpCreate, `{}`), incoming: op(models.OpCreate, `{}`), wantErr: true},
		{name: "create + update", existing: op(models.OpCreate, `{}`), incoming: op(models.OpUpdate, `{"a":1}`), wantAction: queue.ActionReplace, wantKind: models.OpCreate},
		{name: "create + delete", existing: op(models.OpCreate, `{}`), incoming: op(models.OpDelete, ``), wantAction: queue.ActionDrop},
		{name: "update + create", existing: op(models.OpUpdate, `{}`), incoming: op(models.OpCreate, `{}`), wantErr: true},
		{name: "update + update", existing: op(models.OpUpdate, `{}`), incoming: op(models.OpUpdate, `{"a":1}`), wantAction: queue.ActionReplace, wantKind: models.OpUpdate},
		{name: "update + delete", existing: op(models.OpUpdate, `{}`), incoming: op(models.OpDelete, ``), wantAction: queue.ActionReplace, wantKind: models.OpDelete},
		{name: "delete + update", existing: op(models.OpDelete, ``), incoming: op(models.OpUpdate, `{}`), wantErr: true},
		{name: "delete + delete", existing: op(models.OpDelete, ``), incoming: op(models.OpDelete, ``), wantAction: queue.ActionKeep, wantKind: models.OpDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, action, err := queue.Collapse(tt.existing, tt.incoming, now)
			if tt.wantErr {
				assert.True(t, models.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, action)
			if tt.wantAction == queue.ActionDrop {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, int64(7), got.BaseVersion)
		})
	}
}

func TestCollapse_ResetsRetryBudget(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	existing := &models.PendingOperation{
		EntityType: models.EntityPatient,
		EntityID:   "p-1",
		Kind:       models.OpUpdate,
		Payload:    json.RawMessage(`{"a":1}`),
		Status:     models.StatusFailed,
		RetryCount: 5,
		LastError:  "rejected",
	}
	incoming := &models.PendingOperation{
		EntityType: models.EntityPatient,
		EntityID:   "p-1",
		Kind:       models.OpUpdate,
		Payload:    json.RawMessage(`{"a":2}`),
	}

	got, _, err := queue.Collapse(existing, incoming, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Zero(t, got.RetryCount)
	assert.Empty(t, got.LastError)
	assert.Equal(t, now, got.UpdatedAt)
	assert.Equal(t, 5, existing.RetryCount, "Existing operation is not mutated")
}
