package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"

	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/pkg/api"
)

var (
	// ErrUnauthorized токен отсутствует, истек или неверные учетные данные
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound запись не найдена на сервере
	ErrNotFound = errors.New("not found on server")
)

// APIError постоянная ошибка 4xx: повтор того же запроса не поможет
type APIError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (%d): %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Code)
}

// handleAPIError превращает результат запроса в ошибку таксономии клиента
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		// Сеть, DNS, таймаут: сервер недоступен, операцию можно повторить
		return fmt.Errorf("%s: %w", operation, &models.TransientError{Err: requestErr})
	}

	if resp == nil || !resp.IsErrorState() {
		return nil
	}

	status := resp.StatusCode
	errResp := decodeError(resp)

	switch {
	case status == http.StatusConflict:
		return fmt.Errorf("%s: %w", operation, decodeConflict(resp, errResp))

	case status >= http.StatusInternalServerError,
		status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout:
		return fmt.Errorf("%s: %w", operation, &models.TransientError{
			Err:        fmt.Errorf("%s", describeError(errResp, status)),
			StatusCode: status,
		})

	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%s: %w", operation, ErrUnauthorized)

	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	}

	return fmt.Errorf("%s: %w", operation, &APIError{
		StatusCode: status,
		Code:       errResp.Error,
		Message:    errResp.Message,
	})
}

func decodeError(resp *req.Response) api.ErrorResponse {
	if e, ok := resp.ErrorResult().(*api.ErrorResponse); ok && e != nil {
		return *e
	}
	var e api.ErrorResponse
	_ = json.Unmarshal(resp.Bytes(), &e)
	return e
}

func decodeConflict(resp *req.Response, errResp api.ErrorResponse) *models.ConflictError {
	var body api.ConflictResponse
	if err := json.Unmarshal(resp.Bytes(), &body); err != nil {
		return &models.ConflictError{Message: describeError(errResp, resp.StatusCode)}
	}

	ce := &models.ConflictError{Message: body.Message}
	if body.Current != nil {
		ce.Server = body.Current.ToModel()
	}
	return ce
}

func describeError(e api.ErrorResponse, status int) string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	}
	return http.StatusText(status)
}
