// lifecycle.go — переходы статусов, версионирование и архивация.
//
// Публикация архивирует всех опубликованных предшественников с тем же
// номером в одной транзакции: семейство блокируется (SELECT ... FOR UPDATE),
// так что в любой момент опубликована не более одной версии номера.
// Обновление опубликованной политики идёт через клон-черновик: источник
// остаётся published до публикации преемника.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/policyhub/internal/domain/model"
	"github.com/bigkaa/policyhub/internal/domain/rbac"
	"github.com/bigkaa/policyhub/internal/domain/workflow"
	"github.com/bigkaa/policyhub/internal/repository"
)

// LifecycleService — сервис жизненного цикла политик.
type LifecycleService struct {
	policies repository.PolicyRepository
	txm      repository.TxManager
	cache    *PolicyCache
	logger   *slog.Logger
}

// NewLifecycleService создаёт сервис жизненного цикла.
func NewLifecycleService(
	policies repository.PolicyRepository,
	txm repository.TxManager,
	cache *PolicyCache,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		policies: policies,
		txm:      txm,
		cache:    cache,
		logger:   logger.With(slog.String("component", "lifecycle_service")),
	}
}

// Transition переводит политику в целевой статус.
//
// Порядок проверок фиксирован: сначала существование политики и допустимость
// пары статусов (InvalidTransition), затем достаточность роли (NotPermitted),
// затем maker/checker для review-переходов (Forbidden), затем обязательность
// комментария (Validation). Переход published → draft — путь "обновить
// политику": возвращается новый клон-черновик, источник не меняется.
func (s *LifecycleService) Transition(ctx context.Context, actor model.Actor, id, target, comment string) (*model.Policy, error) {
	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение политики: %w", err)
	}

	from, err := workflow.Parse(p.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: политика %s имеет неизвестный статус %q", ErrValidation, id, p.Status)
	}
	to, err := workflow.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	rule, ok := workflow.RuleFor(from, to)
	if !ok {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}

	isCreator := actor.ID == p.CreatorID
	if !rule.Roles[actor.Role] && !(rule.CreatorRoles[actor.Role] && isCreator) {
		return nil, fmt.Errorf("%w: переход %s → %s недоступен роли %s", ErrNotPermitted, from, to, actor.Role)
	}

	if rule.Review && !rbac.CanReview(actor.Role, actor.ID, p.CreatorID) {
		return nil, fmt.Errorf("%w: политика %s", ErrForbidden, p.PolicyNumber)
	}

	if rule.CommentRequired && strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("%w: переход в %s требует комментарий рецензента", ErrValidation, to)
	}

	// Путь "обновить опубликованную": клон, источник не трогаем.
	if from == workflow.StatusPublished && to == workflow.StatusDraft {
		return s.CloneForUpdate(ctx, actor, id)
	}

	if to == workflow.StatusPublished {
		if err := s.publishWithArchival(ctx, actor, p, comment); err != nil {
			return nil, err
		}
		return p, nil
	}

	now := time.Now().UTC()
	switch to {
	case workflow.StatusArchived:
		p.ArchivedAt = &now
	case workflow.StatusDraft:
		if from == workflow.StatusArchived {
			// Восстановление из архива.
			p.ArchivedAt = nil
		}
	}
	if workflow.IsReviewAction(to) {
		p.ReviewerComment = comment
		p.Reviewer = actor.ID
	}
	p.Status = string(to)

	if err := s.policies.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("сохранение перехода %s → %s: %w", from, to, err)
	}
	s.cache.Delete(id)

	s.logger.Info("Статус политики изменён",
		slog.String("policy_id", id),
		slog.String("policy_number", p.PolicyNumber),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor_id", actor.ID),
	)

	return p, nil
}

// publishWithArchival публикует политику и архивирует всех опубликованных
// предшественников с тем же номером в одной транзакции.
func (s *LifecycleService) publishWithArchival(ctx context.Context, actor model.Actor, p *model.Policy, comment string) error {
	now := time.Now().UTC()
	var archivedIDs []string

	err := s.txm.InTx(ctx, func(policies repository.PolicyRepository, _ repository.RevisionRepository) error {
		// Блокируем всё семейство до конца транзакции: конкурентная
		// публикация другой версии того же номера сериализуется здесь.
		others, err := policies.ListPublishedByNumber(ctx, p.PolicyNumber, p.ID, true)
		if err != nil {
			return err
		}

		for _, other := range others {
			other.Status = string(workflow.StatusArchived)
			other.ArchivedAt = &now
			if err := policies.Update(ctx, other); err != nil {
				return fmt.Errorf("архивация предшественника %s: %w", other.ID, err)
			}
			archivedIDs = append(archivedIDs, other.ID)
		}

		p.Status = string(workflow.StatusPublished)
		p.PublishedAt = &now
		p.PublisherID = actor.ID
		p.Reviewer = actor.ID
		p.ReviewerComment = comment
		return policies.Update(ctx, p)
	})
	if err != nil {
		return fmt.Errorf("публикация %s: %w", p.PolicyNumber, err)
	}

	s.cache.Delete(p.ID)
	for _, id := range archivedIDs {
		s.cache.Delete(id)
	}

	s.logger.Info("Политика опубликована",
		slog.String("policy_id", p.ID),
		slog.String("policy_number", p.PolicyNumber),
		slog.String("publisher_id", actor.ID),
		slog.Int("archived_predecessors", len(archivedIDs)),
	)
	return nil
}

// CloneForUpdate создаёт черновик-клон опубликованной политики.
//
// Клон получает содержимое и номер источника, статус draft и creator_id
// ОРИГИНАЛЬНОГО автора — не актора: на неизменности creator_id держится
// maker/checker для всего семейства. parent_policy_id клона всегда
// указывает на корень семейства. Источник не меняется.
func (s *LifecycleService) CloneForUpdate(ctx context.Context, actor model.Actor, id string) (*model.Policy, error) {
	source, err := s.policies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение политики для клонирования: %w", err)
	}

	if source.Status != string(workflow.StatusPublished) {
		return nil, fmt.Errorf("%w: клонируется только опубликованная политика, статус %s", ErrInvalidTransition, source.Status)
	}
	if !workflow.CanTransition(workflow.StatusPublished, workflow.StatusDraft, actor.Role) {
		return nil, fmt.Errorf("%w: клонирование недоступно роли %s", ErrNotPermitted, actor.Role)
	}

	rootID := source.FamilyRootID()
	clone := &model.Policy{
		ID:             uuid.New().String(),
		Name:           source.Name,
		Purpose:        source.Purpose,
		PolicyText:     source.PolicyText,
		Procedure:      source.Procedure,
		PolicyNumber:   source.PolicyNumber,
		PolicyType:     source.PolicyType,
		Status:         string(workflow.StatusDraft),
		CreatorID:      source.CreatorID,
		ParentPolicyID: &rootID,
	}

	if err := s.policies.Create(ctx, clone); err != nil {
		return nil, fmt.Errorf("создание клона: %w", err)
	}

	s.logger.Info("Создан черновик-клон опубликованной политики",
		slog.String("source_id", source.ID),
		slog.String("clone_id", clone.ID),
		slog.String("policy_number", source.PolicyNumber),
		slog.String("actor_id", actor.ID),
	)

	return clone, nil
}

// VersionFamily возвращает все версии семейства политики, новые первыми.
// Запрос работает от любого члена семейства.
func (s *LifecycleService) VersionFamily(ctx context.Context, id string) ([]*model.Policy, error) {
	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение политики: %w", err)
	}

	family, err := s.policies.Family(ctx, p.FamilyRootID())
	if err != nil {
		return nil, fmt.Errorf("получение семейства версий: %w", err)
	}
	return family, nil
}

// FindReplacement возвращает действующую (опубликованную) версию,
// заменившую архивную политику: опубликованную ПОСЛЕ архивации,
// при нескольких кандидатах — самую раннюю. Исторические данные могут
// содержать несколько опубликованных членов семейства, поэтому фильтр
// по published_at > archived_at обязателен. ErrNotFound — преемника нет.
func (s *LifecycleService) FindReplacement(ctx context.Context, id string) (*model.Policy, error) {
	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение политики: %w", err)
	}

	if p.Status != string(workflow.StatusArchived) {
		return nil, fmt.Errorf("%w: преемник ищется только для архивной политики", ErrValidation)
	}
	if p.ArchivedAt == nil {
		return nil, ErrNotFound
	}

	family, err := s.policies.Family(ctx, p.FamilyRootID())
	if err != nil {
		return nil, fmt.Errorf("получение семейства версий: %w", err)
	}

	var replacement *model.Policy
	for _, member := range family {
		if member.ID == p.ID || member.Status != string(workflow.StatusPublished) {
			continue
		}
		if member.PublishedAt == nil || !member.PublishedAt.After(*p.ArchivedAt) {
			continue
		}
		if replacement == nil || member.PublishedAt.Before(*replacement.PublishedAt) {
			replacement = member
		}
	}
	if replacement == nil {
		return nil, ErrNotFound
	}
	return replacement, nil
}
