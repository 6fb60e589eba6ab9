package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/infirmary/pkg/api"
)

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 1 << 20

// sendJSON отправляет JSON ответ
func sendJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func sendError(w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	sendJSON(w, logger, api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}, statusCode)
}

// decodeBody читает JSON тело запроса, отклоняя неизвестные поля
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Fallback отвечает JSON-ошибкой на неизвестные маршруты и методы
type Fallback struct {
	logger *slog.Logger
}

// NewFallback создает обработчики 404 и 405
func NewFallback(logger *slog.Logger) *Fallback {
	return &Fallback{logger: logger}
}

// NotFound обрабатывает запросы к неизвестным путям
func (f *Fallback) NotFound(w http.ResponseWriter, r *http.Request) {
	sendError(w, f.logger, "no route for "+r.URL.Path, http.StatusNotFound)
}

// MethodNotAllowed обрабатывает неподдерживаемые методы
func (f *Fallback) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	sendError(w, f.logger, r.Method+" is not allowed here", http.StatusMethodNotAllowed)
}
