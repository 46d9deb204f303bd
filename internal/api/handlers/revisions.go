// revisions.go — обработчики /api/v1/revisions endpoints.
// Рецензирование ревизий полей политики.
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

// revisionResponse — представление ревизии в API.
type revisionResponse struct {
	ID              string          `json:"id"`
	PolicyID        string          `json:"policy_id"`
	FieldName       string          `json:"field_name"`
	RevisionNumber  int             `json:"revision_number"`
	OriginalContent string          `json:"original_content"`
	ModifiedContent string          `json:"modified_content"`
	ChangeType      string          `json:"change_type"`
	Status          string          `json:"status"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
	ReviewedAt      *string         `json:"reviewed_at,omitempty"`
	ReviewComment   string          `json:"review_comment,omitempty"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       string          `json:"created_at"`
	ChangeMetadata  json.RawMessage `json:"change_metadata,omitempty"`
}

// mapRevision преобразует доменную модель в API-представление.
func mapRevision(rev *model.PolicyRevision) revisionResponse {
	resp := revisionResponse{
		ID:              rev.ID,
		PolicyID:        rev.PolicyID,
		FieldName:       rev.FieldName,
		RevisionNumber:  rev.RevisionNumber,
		OriginalContent: rev.OriginalContent,
		ModifiedContent: rev.ModifiedContent,
		ChangeType:      string(rev.ChangeType),
		Status:          rev.Status,
		ReviewedBy:      rev.ReviewedBy,
		ReviewComment:   rev.ReviewComment,
		CreatedBy:       rev.CreatedBy,
		CreatedAt:       rev.CreatedAt.UTC().Format(time.RFC3339),
		ChangeMetadata:  rev.ChangeMetadata,
	}
	if rev.ReviewedAt != nil {
		s := rev.ReviewedAt.UTC().Format(time.RFC3339)
		resp.ReviewedAt = &s
	}
	return resp
}

// mapRevisions преобразует срез ревизий в API-представление.
func mapRevisions(revs []*model.PolicyRevision) []revisionResponse {
	items := make([]revisionResponse, 0, len(revs))
	for _, rev := range revs {
		items = append(items, mapRevision(rev))
	}
	return items
}

// reviewRequest — тело POST /api/v1/revisions/{id}/review.
type reviewRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment,omitempty"`
}

// ReviewRevision — POST /api/v1/revisions/{id}/review.
// Вердикт рецензента по ревизии: accepted или rejected. Доступ: publish и выше;
// автор ревизии не рецензирует её сам (super-admin освобождён).
func (h *APIHandler) ReviewRevision(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	id := chi.URLParam(r, "id")

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	rev, err := h.revisions.Review(r.Context(), claims.Actor(), id, req.Decision, req.Comment)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка рецензирования ревизии")
		return
	}

	writeJSON(w, http.StatusOK, mapRevision(rev))
}
