// role_overrides.go — обработчики /api/v1/role-overrides endpoints.
// Администрирование локальных дополнений ролей. Доступ: super-admin.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/policyhub/internal/api/errors"
	"github.com/bigkaa/policyhub/internal/api/middleware"
	"github.com/bigkaa/policyhub/internal/domain/model"
)

// roleOverrideResponse — представление дополнения роли в API.
type roleOverrideResponse struct {
	ID             int64  `json:"id"`
	KeycloakUserID string `json:"keycloak_user_id"`
	Username       string `json:"username,omitempty"`
	AdditionalRole string `json:"additional_role"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// mapRoleOverride преобразует доменную модель в API-представление.
func mapRoleOverride(ro *model.RoleOverride) roleOverrideResponse {
	return roleOverrideResponse{
		ID:             ro.ID,
		KeycloakUserID: ro.KeycloakUserID,
		Username:       ro.Username,
		AdditionalRole: ro.AdditionalRole,
		CreatedBy:      ro.CreatedBy,
		CreatedAt:      ro.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      ro.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// setRoleOverrideRequest — тело PUT /api/v1/role-overrides/{id}.
type setRoleOverrideRequest struct {
	Username       string `json:"username,omitempty"`
	AdditionalRole string `json:"additional_role"`
}

// SetRoleOverride — PUT /api/v1/role-overrides/{id}.
// {id} — Keycloak user ID. Создаёт или обновляет дополнение роли.
func (h *APIHandler) SetRoleOverride(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	keycloakUserID := chi.URLParam(r, "id")

	var req setRoleOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	ro, err := h.roleOverrides.Set(r.Context(), claims.Actor(), keycloakUserID, req.Username, req.AdditionalRole)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка установки дополнения роли")
		return
	}

	writeJSON(w, http.StatusOK, mapRoleOverride(ro))
}

// ListRoleOverrides — GET /api/v1/role-overrides.
func (h *APIHandler) ListRoleOverrides(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	limit, offset := paginationDefaults(r)

	list, total, err := h.roleOverrides.List(r.Context(), claims.Actor(), limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения дополнений ролей")
		return
	}

	items := make([]roleOverrideResponse, 0, len(list))
	for _, ro := range list {
		items = append(items, mapRoleOverride(ro))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// DeleteRoleOverride — DELETE /api/v1/role-overrides/{id}.
func (h *APIHandler) DeleteRoleOverride(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	keycloakUserID := chi.URLParam(r, "id")

	if err := h.roleOverrides.Delete(r.Context(), claims.Actor(), keycloakUserID); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления дополнения роли")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
