package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/pkg/api"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		writeJSON(t, w, http.StatusOK, api.HealthResponse{Status: "ok", Time: time.Now()})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	assert.NoError(t, client.Health(context.Background()))
}

func TestClient_Health_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, time.Second)
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsTransient(err), "Connection refused must be transient, got %v", err)
}

func TestClient_List(t *testing.T) {
	after := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/entities/patient", r.URL.Path)
		assert.Equal(t, after.Format(time.RFC3339Nano), r.URL.Query().Get("updated_after"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))

		writeJSON(t, w, http.StatusOK, api.ListResponse{
			Entities: []api.Entity{
				{ID: "p-1", Type: "patient", Data: json.RawMessage(`{"first_name":"Ana"}`), Version: 2, UpdatedAt: after.Add(time.Second)},
			},
			HasMore: true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	client.SetAccessToken("jwt-token")

	page, err := client.List(context.Background(), models.EntityPatient, after, 50)
	require.NoError(t, err)
	require.Len(t, page.Entities, 1)
	assert.True(t, page.HasMore)
	assert.Equal(t, models.EntityPatient, page.Entities[0].Type)
	assert.Equal(t, int64(2), page.Entities[0].Version)
}

func TestClient_Update_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/entities/patient/p-1", r.URL.Path)

		var body api.UpdateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(2), body.BaseVersion)
		assert.False(t, body.Force)

		writeJSON(t, w, http.StatusConflict, api.ConflictResponse{
			Error:   "version_conflict",
			Message: "record changed since version 2",
			Current: &api.Entity{ID: "p-1", Type: "patient", Version: 3, Data: json.RawMessage(`{"phone":"server"}`)},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Update(context.Background(), models.EntityPatient, "p-1", json.RawMessage(`{"phone":"local"}`), 2, false)
	require.Error(t, err)

	ce, ok := models.AsConflict(err)
	require.True(t, ok, "expected ConflictError, got %v", err)
	require.NotNil(t, ce.Server)
	assert.Equal(t, int64(3), ce.Server.Version)
	assert.JSONEq(t, `{"phone":"server"}`, string(ce.Server.Data))
	assert.False(t, models.IsTransient(err))
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		target    error
		apiError  bool
	}{
		{name: "server error is transient", status: http.StatusInternalServerError, transient: true},
		{name: "bad gateway is transient", status: http.StatusBadGateway, transient: true},
		{name: "rate limit is transient", status: http.StatusTooManyRequests, transient: true},
		{name: "unauthorized", status: http.StatusUnauthorized, target: ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, target: ErrNotFound},
		{name: "bad request is permanent", status: http.StatusBadRequest, apiError: true},
		{name: "unprocessable is permanent", status: http.StatusUnprocessableEntity, apiError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, api.ErrorResponse{Error: "failed", Message: "details"})
			}))
			defer server.Close()

			client := NewClient(server.URL, time.Second)
			_, err := client.Create(context.Background(), models.EntityPatient, "p-1", json.RawMessage(`{}`))
			require.Error(t, err)

			assert.Equal(t, tt.transient, models.IsTransient(err))
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.apiError {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, tt.status, apiErr.StatusCode)
				assert.Equal(t, "details", apiErr.Message)
			}
		})
	}
}

func TestClient_Timeout_IsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(t, w, http.StatusOK, api.Entity{})
	}))
	defer server.Close()

	client := NewClient(server.URL, 20*time.Millisecond)
	_, err := client.Get(context.Background(), models.EntityPatient, "p-1")
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))
}

func TestClient_CreateAndDelete(t *testing.T) {
	now := time.Now().UTC()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var body api.CreateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "tmp-1", body.ID)
			writeJSON(t, w, http.StatusCreated, api.Entity{ID: "srv-1", Type: "vaccination", Version: 1, Data: body.Data, UpdatedAt: now})
		case http.MethodDelete:
			assert.Equal(t, "4", r.URL.Query().Get("base_version"))
			assert.Equal(t, "true", r.URL.Query().Get("force"))
			writeJSON(t, w, http.StatusOK, api.Entity{ID: "srv-1", Type: "vaccination", Version: 5, Deleted: true, UpdatedAt: now})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	created, err := client.Create(context.Background(), models.EntityVaccination, "tmp-1", json.RawMessage(`{"vaccine_name":"BCG"}`))
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)
	assert.Equal(t, int64(1), created.Version)

	deleted, err := client.Delete(context.Background(), models.EntityVaccination, "srv-1", 4, true)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
}

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body api.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Password != "correct-horse" {
			writeJSON(t, w, http.StatusUnauthorized, api.ErrorResponse{Error: "invalid_credentials"})
			return
		}
		writeJSON(t, w, http.StatusOK, api.TokenResponse{AccessToken: "jwt", UserID: "u-1", ExpiresIn: 900})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	resp, err := client.Login(context.Background(), api.LoginRequest{Username: "nurse", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", resp.AccessToken)

	_, err = client.Login(context.Background(), api.LoginRequest{Username: "nurse", Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}
