// policies.go — обработчики /api/v1/policies endpoints.
// CRUD политик, переходы статусов, версионирование, журнал ревизий.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/policyhub/internal/api/errors"
	"github.com/bigkaa/policyhub/internal/api/middleware"
	"github.com/bigkaa/policyhub/internal/domain/model"
	"github.com/bigkaa/policyhub/internal/repository"
	"github.com/bigkaa/policyhub/internal/service"
)

// policyResponse — представление политики в API.
type policyResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Purpose         string  `json:"purpose"`
	PolicyText      string  `json:"policy_text"`
	Procedure       string  `json:"procedure"`
	PolicyNumber    string  `json:"policy_number"`
	PolicyType      string  `json:"policy_type"`
	Status          string  `json:"status"`
	CreatorID       string  `json:"creator_id"`
	PublisherID     string  `json:"publisher_id,omitempty"`
	Reviewer        string  `json:"reviewer,omitempty"`
	ReviewerComment string  `json:"reviewer_comment,omitempty"`
	ParentPolicyID  *string `json:"parent_policy_id,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	PublishedAt     *string `json:"published_at,omitempty"`
	ArchivedAt      *string `json:"archived_at,omitempty"`
}

// mapPolicy преобразует доменную модель в API-представление.
func mapPolicy(p *model.Policy) policyResponse {
	resp := policyResponse{
		ID:              p.ID,
		Name:            p.Name,
		Purpose:         p.Purpose,
		PolicyText:      p.PolicyText,
		Procedure:       p.Procedure,
		PolicyNumber:    p.PolicyNumber,
		PolicyType:      string(p.PolicyType),
		Status:          p.Status,
		CreatorID:       p.CreatorID,
		PublisherID:     p.PublisherID,
		Reviewer:        p.Reviewer,
		ReviewerComment: p.ReviewerComment,
		ParentPolicyID:  p.ParentPolicyID,
		CreatedAt:       p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if p.PublishedAt != nil {
		s := p.PublishedAt.UTC().Format(time.RFC3339)
		resp.PublishedAt = &s
	}
	if p.ArchivedAt != nil {
		s := p.ArchivedAt.UTC().Format(time.RFC3339)
		resp.ArchivedAt = &s
	}
	return resp
}

// policyListResponse — страница списка политик.
type policyListResponse struct {
	Items  []policyResponse `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// mapPolicies преобразует срез политик в API-представление.
func mapPolicies(policies []*model.Policy) []policyResponse {
	items := make([]policyResponse, 0, len(policies))
	for _, p := range policies {
		items = append(items, mapPolicy(p))
	}
	return items
}

// ListPolicies — GET /api/v1/policies.
// Фильтры: status, policy_type, creator_id. Пагинация: limit, offset.
func (h *APIHandler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationDefaults(r)

	var filter repository.PolicyFilter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := q.Get("policy_type"); v != "" {
		filter.PolicyType = &v
	}
	if v := q.Get("creator_id"); v != "" {
		filter.CreatorID = &v
	}

	list, total, err := h.policies.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка политик")
		return
	}

	writeJSON(w, http.StatusOK, policyListResponse{
		Items:  mapPolicies(list),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// createPolicyRequest — тело POST /api/v1/policies.
type createPolicyRequest struct {
	Name          string `json:"name"`
	Purpose       string `json:"purpose"`
	PolicyText    string `json:"policy_text"`
	Procedure     string `json:"procedure"`
	PolicyType    string `json:"policy_type"`
	InitialStatus string `json:"initial_status,omitempty"`
}

// CreatePolicy — POST /api/v1/policies.
// Доступ: edit и выше (draft); publish и выше (under-review).
func (h *APIHandler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}

	var req createPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	p, err := h.policies.Create(r.Context(), claims.Actor(), service.CreatePolicyInput{
		Name:          req.Name,
		Purpose:       req.Purpose,
		PolicyText:    req.PolicyText,
		Procedure:     req.Procedure,
		PolicyType:    req.PolicyType,
		InitialStatus: req.InitialStatus,
	})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания политики")
		return
	}

	writeJSON(w, http.StatusCreated, mapPolicy(p))
}

// GetPolicy — GET /api/v1/policies/{id}.
func (h *APIHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.policies.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения политики")
		return
	}

	writeJSON(w, http.StatusOK, mapPolicy(p))
}

// updatePolicyRequest — тело PUT /api/v1/policies/{id}.
// Отсутствующее поле не меняется; переданное сравнивается с текущим
// содержимым и при отличии порождает ревизию.
type updatePolicyRequest struct {
	Name       *string `json:"name,omitempty"`
	Purpose    *string `json:"purpose,omitempty"`
	PolicyText *string `json:"policy_text,omitempty"`
	Procedure  *string `json:"procedure,omitempty"`
}

// updatePolicyResponse — результат обновления: политика и созданные ревизии.
type updatePolicyResponse struct {
	Policy    policyResponse     `json:"policy"`
	Revisions []revisionResponse `json:"revisions"`
}

// UpdatePolicy — PUT /api/v1/policies/{id}.
// Доступ: edit и выше; политика должна быть в draft или awaiting-changes.
func (h *APIHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	id := chi.URLParam(r, "id")

	var req updatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	p, revs, err := h.policies.UpdateContent(r.Context(), claims.Actor(), id, service.UpdateContentInput{
		Name:       req.Name,
		Purpose:    req.Purpose,
		PolicyText: req.PolicyText,
		Procedure:  req.Procedure,
	})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления политики")
		return
	}

	writeJSON(w, http.StatusOK, updatePolicyResponse{
		Policy:    mapPolicy(p),
		Revisions: mapRevisions(revs),
	})
}

// DeletePolicy — DELETE /api/v1/policies/{id}.
// Физическое удаление вместе с ревизиями. Доступ: super-admin.
func (h *APIHandler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.policies.Delete(r.Context(), claims.Actor(), id); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления политики")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// transitionRequest — тело POST /api/v1/policies/{id}/transition.
type transitionRequest struct {
	TargetStatus string `json:"target_status"`
	Comment      string `json:"comment,omitempty"`
}

// TransitionPolicy — POST /api/v1/policies/{id}/transition.
// Перевод политики в целевой статус. Для published → draft возвращает
// созданный клон-черновик.
func (h *APIHandler) TransitionPolicy(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	id := chi.URLParam(r, "id")

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.TargetStatus == "" {
		apierrors.ValidationError(w, "Целевой статус обязателен")
		return
	}

	p, err := h.lifecycle.Transition(r.Context(), claims.Actor(), id, req.TargetStatus, req.Comment)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка перехода статуса")
		return
	}

	writeJSON(w, http.StatusOK, mapPolicy(p))
}

// ClonePolicy — POST /api/v1/policies/{id}/clone.
// Создаёт черновик-клон опубликованной политики. Доступ: publish и выше.
func (h *APIHandler) ClonePolicy(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	id := chi.URLParam(r, "id")

	clone, err := h.lifecycle.CloneForUpdate(r.Context(), claims.Actor(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка клонирования политики")
		return
	}

	writeJSON(w, http.StatusCreated, mapPolicy(clone))
}

// PolicyFamily — GET /api/v1/policies/{id}/family.
// Все версии семейства политики, новые первыми.
func (h *APIHandler) PolicyFamily(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	family, err := h.lifecycle.VersionFamily(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения семейства версий")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": mapPolicies(family),
		"total": len(family),
	})
}

// PolicyReplacement — GET /api/v1/policies/{id}/replacement.
// Действующая версия, заменившая архивную политику.
func (h *APIHandler) PolicyReplacement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	replacement, err := h.lifecycle.FindReplacement(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка поиска преемника")
		return
	}

	writeJSON(w, http.StatusOK, mapPolicy(replacement))
}

// ListPolicyRevisions — GET /api/v1/policies/{id}/revisions?field_name=...
// Журнал ревизий политики, новые первыми.
func (h *APIHandler) ListPolicyRevisions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var fieldName *string
	if v := r.URL.Query().Get("field_name"); v != "" {
		fieldName = &v
	}

	revs, err := h.revisions.ListByPolicy(r.Context(), id, fieldName)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения ревизий")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": mapRevisions(revs),
		"total": len(revs),
	})
}
