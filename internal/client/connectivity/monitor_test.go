package connectivity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/infirmary/internal/client/api"
	"github.com/iudanet/infirmary/internal/logger"
)

func TestMonitor_SetNotifiesOnTransition(t *testing.T) {
	m := NewMonitor(false, logger.Discard())
	changes := m.Subscribe()
	defer m.Unsubscribe(changes)

	assert.False(t, m.Set(false), "same state is not a transition")
	assert.True(t, m.Set(true))
	assert.True(t, m.Online())
	assert.True(t, m.Set(false))

	select {
	case c := <-changes:
		assert.True(t, c.Online)
	case <-time.After(time.Second):
		t.Fatal("expected online change")
	}
	select {
	case c := <-changes:
		assert.False(t, c.Online)
	case <-time.After(time.Second):
		t.Fatal("expected offline change")
	}

	select {
	case c := <-changes:
		t.Fatalf("unexpected change %+v", c)
	default:
	}
}

func TestMonitor_CheckRecordsCause(t *testing.T) {
	m := NewMonitor(true, logger.Discard())
	probeErr := errors.New("dial tcp: connection refused")

	online := m.Check(context.Background(), ProviderFunc(func(ctx context.Context) error {
		return probeErr
	}))
	assert.False(t, online)
	assert.False(t, m.Online())
	assert.ErrorIs(t, m.LastError(), probeErr)

	online = m.Check(context.Background(), ProviderFunc(func(ctx context.Context) error {
		return nil
	}))
	assert.True(t, online)
	assert.NoError(t, m.LastError())
}

func TestMonitor_CheckIgnoresCancelledProbe(t *testing.T) {
	m := NewMonitor(true, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m.Check(ctx, ProviderFunc(func(ctx context.Context) error {
		return ctx.Err()
	}))
	assert.True(t, m.Online())
}

func TestMonitor_Run(t *testing.T) {
	var healthy atomic.Bool
	provider := ProviderFunc(func(ctx context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("unreachable")
	})

	m := NewMonitor(true, logger.Discard())
	changes := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, provider, 10*time.Millisecond)
		close(done)
	}()

	select {
	case c := <-changes:
		assert.False(t, c.Online)
		assert.Error(t, c.Err)
	case <-time.After(time.Second):
		t.Fatal("expected offline transition")
	}

	healthy.Store(true)
	select {
	case c := <-changes:
		assert.True(t, c.Online)
	case <-time.After(time.Second):
		t.Fatal("expected online transition")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	m.Unsubscribe(changes)
}

func TestHTTPProvider_Probe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	provider := NewHTTPProvider(api.NewClient(server.URL, time.Second), time.Second)
	require.NoError(t, provider.Probe(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	assert.Error(t, provider.Probe(context.Background()))
}
