// handler.go — основной обработчик API PolicyHub.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/policyhub/internal/api/errors"
	"github.com/bigkaa/policyhub/internal/service"
)

// APIHandler — основной обработчик API PolicyHub.
type APIHandler struct {
	health        *HealthHandler
	policies      *service.PolicyService
	lifecycle     *service.LifecycleService
	revisions     *service.RevisionService
	roleOverrides *service.RoleOverrideService
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	policies *service.PolicyService,
	lifecycle *service.LifecycleService,
	revisions *service.RevisionService,
	roleOverrides *service.RoleOverrideService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		policies:      policies,
		lifecycle:     lifecycle,
		revisions:     revisions,
		roleOverrides: roleOverrides,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError маппит ошибки сервисного слоя на HTTP-ответы.
// fallback — сообщение для неклассифицированных ошибок (логируются как 500).
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		apierrors.InvalidTransition(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrNotPermitted):
		apierrors.NotPermitted(w, err.Error())
	case errors.Is(err, service.ErrNumberGeneration):
		apierrors.NumberGeneration(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		h.logger.Error(fallback, slog.String("error", err.Error()))
		apierrors.InternalError(w, fallback)
	}
}

// paginationDefaults нормализует параметры пагинации из query string.
// Возвращает корректные limit и offset.
func paginationDefaults(r *http.Request) (int, int) {
	l := 100
	o := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			l = parsed
		}
	}
	if l < 1 {
		l = 1
	}
	if l > 1000 {
		l = 1000
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			o = parsed
		}
	}
	if o < 0 {
		o = 0
	}

	return l, o
}
