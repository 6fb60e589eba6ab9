package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/infirmary/internal/server/config"
	"github.com/iudanet/infirmary/internal/server/jwt"
	"github.com/iudanet/infirmary/internal/server/storage/sqlite"
	"github.com/iudanet/infirmary/pkg/api"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestRouter(t *testing.T, limits Limits) *Router {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(logger, store, jwt.NewService(testSecret, time.Hour), limits)
	t.Cleanup(func() {
		router.Stop()
		_ = store.Close()
	})
	return router
}

func request(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Fallbacks(t *testing.T) {
	router := newTestRouter(t, Limits{Window: time.Minute, API: 100, Auth: 100})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "unknown path", method: http.MethodGet, path: "/api/v2/anything", wantStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPatch, path: healthPath, wantStatus: http.StatusMethodNotAllowed},
		{name: "health", method: http.MethodGet, path: healthPath, wantStatus: http.StatusOK},
		{name: "entities without token", method: http.MethodGet, path: "/api/v1/entities/patient", wantStatus: http.StatusUnauthorized},
		{name: "entities with bad token", method: http.MethodGet, path: "/api/v1/entities/patient?token=x", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(t, router, tt.method, tt.path, "", nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestRouter_RegisterLoginAndSync(t *testing.T) {
	router := newTestRouter(t, Limits{Window: time.Minute, API: 100, Auth: 100})

	creds := api.RegisterRequest{Username: "nurse.ann", Password: "correct-horse"}
	w := request(t, router, http.MethodPost, "/api/v1/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = request(t, router, http.MethodPost, "/api/v1/auth/login", "", api.LoginRequest(creds))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token api.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&token))
	require.NotEmpty(t, token.AccessToken)

	id := uuid.New().String()
	w = request(t, router, http.MethodPost, "/api/v1/entities/patient", token.AccessToken,
		api.CreateRequest{ID: id, Data: json.RawMessage(`{"first_name":"Ann","last_name":"Lee"}`)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = request(t, router, http.MethodGet, "/api/v1/entities/patient", token.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page api.ListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	require.Len(t, page.Entities, 1)
	assert.Equal(t, id, page.Entities[0].ID)

	w = request(t, router, http.MethodPut, "/api/v1/entities/patient/"+id, token.AccessToken,
		api.UpdateRequest{Data: json.RawMessage(`{"first_name":"Anna","last_name":"Lee"}`), BaseVersion: 0})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_AuthRateLimit(t *testing.T) {
	router := newTestRouter(t, Limits{Window: time.Minute, API: 100, Auth: 2})

	creds := api.LoginRequest{Username: "nobody", Password: "whatever-pass"}
	for i := 0; i < 2; i++ {
		w := request(t, router, http.MethodPost, "/api/v1/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := request(t, router, http.MethodPost, "/api/v1/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Health не ограничивается
	assert.Equal(t, http.StatusOK, request(t, router, http.MethodGet, healthPath, "", nil).Code)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	cfg := &config.Config{
		Address:         "127.0.0.1:0",
		DBPath:          ":memory:",
		JWTSecret:       testSecret,
		AccessTokenTTL:  time.Hour,
		RateWindow:      time.Minute,
		ShutdownTimeout: time.Second,
		RateLimit:       100,
		AuthRateLimit:   100,
	}
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + healthPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
