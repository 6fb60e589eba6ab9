package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/infirmary/internal/server/jwt"
	"github.com/iudanet/infirmary/pkg/api"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestAuthMiddleware(t *testing.T) {
	tokens := jwt.NewService("test-secret", 15*time.Minute)
	valid, _, err := tokens.GenerateAccessToken("user-1", "nurse")
	require.NoError(t, err)

	foreign, _, err := jwt.NewService("other-secret", time.Minute).GenerateAccessToken("user-1", "nurse")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "no token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				claims, ok := jwt.FromContext(r.Context())
				require.True(t, ok)
				gotUser = claims.UserID
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/patient", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			AuthMiddleware(discardLogger(), tokens)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "user-1", gotUser)
			} else {
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
				assert.Equal(t, http.StatusText(http.StatusUnauthorized), decodeError(t, w).Error)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/entities/patient", nil)
	w := httptest.NewRecorder()

	RecoveryMiddleware(logger)(panicking).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, w.Body.String(), "boom")

	assert.Contains(t, logBuf.String(), "panic recovered")
	assert.Contains(t, logBuf.String(), "boom")
	assert.Contains(t, logBuf.String(), "stack")

	t.Run("no panic passes through", func(t *testing.T) {
		w := httptest.NewRecorder()
		RecoveryMiddleware(logger)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})

	t.Run("abort handler is re-panicked", func(t *testing.T) {
		abort := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		})
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			RecoveryMiddleware(logger)(abort).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
		wantLog   bool
	}{
		{name: "success", path: "/api/v1/entities/patient/p-123", status: http.StatusOK, wantLevel: "INFO", wantLog: true},
		{name: "conflict is info", path: "/api/v1/entities/patient/p-123", status: http.StatusConflict, wantLevel: "INFO", wantLog: true},
		{name: "client error", path: "/api/v1/entities/patient/p-123", status: http.StatusBadRequest, wantLevel: "WARN", wantLog: true},
		{name: "server error", path: "/api/v1/entities/patient/p-123", status: http.StatusInternalServerError, wantLevel: "ERROR", wantLog: true},
		{name: "health skipped", path: "/api/v1/health", status: http.StatusOK, wantLog: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

			router := mux.NewRouter()
			router.Use(LoggingMiddleware(logger, "/api/v1/health"))
			handler := func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}
			router.HandleFunc("/api/v1/entities/{type}/{id}", handler)
			router.HandleFunc("/api/v1/health", handler)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)

			if !tt.wantLog {
				assert.Empty(t, logBuf.String())
				return
			}

			var entry map[string]any
			require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "/api/v1/entities/{type}/{id}", entry["route"])
			assert.EqualValues(t, tt.status, entry["status"])
			assert.EqualValues(t, 4, entry["bytes_written"])
			assert.NotContains(t, logBuf.String(), "p-123")
		})
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(3, time.Minute)
	defer limiter.Stop()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.Allow("ip:10.0.0.1")
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, retryAfter := limiter.Allow("ip:10.0.0.1")
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, retryAfter)

	// Другой ключ считается отдельно
	allowed, _ = limiter.Allow("ip:10.0.0.2")
	assert.True(t, allowed)

	now = now.Add(time.Minute)
	allowed, _ = limiter.Allow("ip:10.0.0.1")
	assert.True(t, allowed)

	now = now.Add(5 * time.Minute)
	limiter.cleanupOldBuckets()
	limiter.mu.Lock()
	assert.Empty(t, limiter.buckets)
	limiter.mu.Unlock()

	limiter.Stop()
	limiter.Stop()
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	defer limiter.Stop()
	handler := RateLimitMiddleware(limiter, discardLogger())(okHandler())

	send := func(remote string, claims *jwt.Claims) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/patient", nil)
		req.RemoteAddr = remote
		if claims != nil {
			req = req.WithContext(jwt.WithClaims(req.Context(), claims))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:5000", nil).Code)

	// Порт не влияет на ключ
	w := send("10.0.0.1:5001", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusText(http.StatusTooManyRequests), decodeError(t, w).Error)

	// Пользователи за тем же адресом имеют свои лимиты
	assert.Equal(t, http.StatusOK, send("10.0.0.1:5002", &jwt.Claims{UserID: "a"}).Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1:5003", &jwt.Claims{UserID: "b"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5004", &jwt.Claims{UserID: "a"}).Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		headers    map[string]string
		name       string
		remoteAddr string
		want       string
	}{
		{name: "remote addr with port", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "remote addr without port", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
		{
			name:       "x-forwarded-for list",
			remoteAddr: "10.0.0.1:1",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"},
			want:       "203.0.113.5",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:1",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
