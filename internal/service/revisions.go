// revisions.go — журнал ревизий полей политики.
//
// Ревизии создаются при сохранении формы редактирования (см. policies.go)
// и здесь только читаются и рецензируются. Вердикт рецензента — след для
// аудита: принятие ревизии НЕ переносит её содержимое в политику,
// фактическое содержимое определяет сохранённая форма.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/policyhub/internal/domain/model"
	"github.com/bigkaa/policyhub/internal/domain/rbac"
	"github.com/bigkaa/policyhub/internal/repository"
)

// RevisionService — сервис журнала ревизий.
type RevisionService struct {
	policies  repository.PolicyRepository
	revisions repository.RevisionRepository
	logger    *slog.Logger
}

// NewRevisionService создаёт сервис ревизий.
func NewRevisionService(
	policies repository.PolicyRepository,
	revisions repository.RevisionRepository,
	logger *slog.Logger,
) *RevisionService {
	return &RevisionService{
		policies:  policies,
		revisions: revisions,
		logger:    logger.With(slog.String("component", "revision_service")),
	}
}

// ListByPolicy возвращает ревизии политики, новые первыми.
// fieldName — опциональный фильтр по полю содержимого.
func (s *RevisionService) ListByPolicy(ctx context.Context, policyID string, fieldName *string) ([]*model.PolicyRevision, error) {
	if fieldName != nil && !model.IsContentField(*fieldName) {
		return nil, fmt.Errorf("%w: недопустимое имя поля %q", ErrValidation, *fieldName)
	}

	if _, err := s.policies.GetByID(ctx, policyID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение политики: %w", err)
	}

	revs, err := s.revisions.ListByPolicy(ctx, policyID, fieldName)
	if err != nil {
		return nil, fmt.Errorf("получение ревизий: %w", err)
	}
	return revs, nil
}

// Review фиксирует вердикт рецензента по ревизии: accepted или rejected.
// Ревизия рецензируется ровно один раз; maker/checker действует и по автору
// ревизии, и по создателю политики, которой она принадлежит. Содержимое
// политики вердикт не меняет.
func (s *RevisionService) Review(ctx context.Context, actor model.Actor, revisionID, decision, comment string) (*model.PolicyRevision, error) {
	if decision != model.RevisionAccepted && decision != model.RevisionRejected {
		return nil, fmt.Errorf("%w: недопустимый вердикт %q, допустимые: accepted, rejected", ErrValidation, decision)
	}

	rev, err := s.revisions.GetByID(ctx, revisionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение ревизии: %w", err)
	}

	pol, err := s.policies.GetByID(ctx, rev.PolicyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение политики ревизии: %w", err)
	}

	if !rbac.HasCapability(actor.Role, rbac.CapReview) {
		return nil, fmt.Errorf("%w: роль %s не рецензирует ревизии", ErrNotPermitted, actor.Role)
	}
	if !rbac.CanReview(actor.Role, actor.ID, rev.CreatedBy) {
		return nil, fmt.Errorf("%w: ревизия %d", ErrForbidden, rev.RevisionNumber)
	}
	if !rbac.CanReview(actor.Role, actor.ID, pol.CreatorID) {
		return nil, fmt.Errorf("%w: создатель политики %s не рецензирует её ревизии", ErrForbidden, pol.PolicyNumber)
	}

	if rev.Status != model.RevisionPending {
		return nil, fmt.Errorf("%w: ревизия уже рассмотрена (%s)", ErrConflict, rev.Status)
	}

	reviewed, err := s.revisions.UpdateReview(ctx, revisionID, decision, actor.ID, comment)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: ревизия уже рассмотрена", ErrConflict)
		}
		return nil, fmt.Errorf("рецензирование ревизии: %w", err)
	}

	s.logger.Info("Ревизия рассмотрена",
		slog.String("revision_id", revisionID),
		slog.String("policy_id", reviewed.PolicyID),
		slog.String("decision", decision),
		slog.String("reviewer_id", actor.ID),
	)

	return reviewed, nil
}
