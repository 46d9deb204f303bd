// policies.go — сервис CRUD политик.
// Создание с выдачей номера, чтение через LRU-кэш, обновление содержимого
// с записью ревизий, физическое удаление.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/policyhub/internal/diff"
	"github.com/bigkaa/policyhub/internal/domain/model"
	"github.com/bigkaa/policyhub/internal/domain/rbac"
	"github.com/bigkaa/policyhub/internal/domain/workflow"
	"github.com/bigkaa/policyhub/internal/numbering"
	"github.com/bigkaa/policyhub/internal/repository"
)

// PolicyService — сервис управления политиками.
type PolicyService struct {
	policies  repository.PolicyRepository
	revisions repository.RevisionRepository
	numbers   numbering.Generator
	cache     *PolicyCache
	logger    *slog.Logger
}

// NewPolicyService создаёт сервис политик.
func NewPolicyService(
	policies repository.PolicyRepository,
	revisions repository.RevisionRepository,
	numbers numbering.Generator,
	cache *PolicyCache,
	logger *slog.Logger,
) *PolicyService {
	return &PolicyService{
		policies:  policies,
		revisions: revisions,
		numbers:   numbers,
		cache:     cache,
		logger:    logger.With(slog.String("component", "policy_service")),
	}
}

// CreatePolicyInput — входные данные создания политики.
type CreatePolicyInput struct {
	Name       string
	Purpose    string
	PolicyText string
	Procedure  string
	PolicyType string
	// InitialStatus — draft (по умолчанию) или under-review.
	InitialStatus string
}

// Create создаёт новую политику с выданным номером.
// Без номера политика не создаётся: ошибка генератора прерывает операцию.
func (s *PolicyService) Create(ctx context.Context, actor model.Actor, in CreatePolicyInput) (*model.Policy, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: название политики обязательно", ErrValidation)
	}
	if !model.IsValidPolicyType(in.PolicyType) {
		return nil, fmt.Errorf("%w: недопустимый тип политики %q", ErrValidation, in.PolicyType)
	}

	initialRaw := in.InitialStatus
	if initialRaw == "" {
		initialRaw = string(workflow.StatusDraft)
	}
	initial, err := workflow.Parse(initialRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if !rbac.HasCapability(actor.Role, rbac.CapEdit) {
		return nil, fmt.Errorf("%w: роль %s не создаёт политики", ErrNotPermitted, actor.Role)
	}
	if !workflow.CanCreate(initial, actor.Role) {
		return nil, fmt.Errorf("%w: роль %s не создаёт политики в статусе %s", ErrNotPermitted, actor.Role, initial)
	}

	number, err := s.numbers.NextPolicyNumber(ctx, in.PolicyType)
	if err != nil {
		return nil, err
	}

	p := &model.Policy{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Purpose:      in.Purpose,
		PolicyText:   in.PolicyText,
		Procedure:    in.Procedure,
		PolicyNumber: number,
		PolicyType:   model.PolicyType(in.PolicyType),
		Status:       string(initial),
		CreatorID:    actor.ID,
	}

	if err := s.policies.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: политика уже существует", ErrConflict)
		}
		return nil, fmt.Errorf("сохранение политики: %w", err)
	}

	s.logger.Info("Политика создана",
		slog.String("policy_id", p.ID),
		slog.String("policy_number", p.PolicyNumber),
		slog.String("status", p.Status),
		slog.String("creator_id", actor.ID),
	)

	return p, nil
}

// Get возвращает политику по id. Чтение идёт через LRU-кэш.
func (s *PolicyService) Get(ctx context.Context, id string) (*model.Policy, error) {
	if p, ok := s.cache.Get(id); ok {
		return p, nil
	}

	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение политики: %w", err)
	}

	s.cache.Set(id, p)
	return p, nil
}

// List возвращает список политик с фильтрацией и пагинацией.
func (s *PolicyService) List(ctx context.Context, f repository.PolicyFilter, limit, offset int) ([]*model.Policy, int, error) {
	if f.Status != nil {
		if _, err := workflow.Parse(*f.Status); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if f.PolicyType != nil && !model.IsValidPolicyType(*f.PolicyType) {
		return nil, 0, fmt.Errorf("%w: недопустимый тип политики %q", ErrValidation, *f.PolicyType)
	}

	list, err := s.policies.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка политик: %w", err)
	}

	total, err := s.policies.Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт политик: %w", err)
	}

	return list, total, nil
}

// UpdateContentInput — изменения полей содержимого. nil-поле не трогается.
type UpdateContentInput struct {
	Name       *string
	Purpose    *string
	PolicyText *string
	Procedure  *string
}

// fields возвращает пары (имя поля, новое значение) в фиксированном порядке.
func (in UpdateContentInput) fields() []struct {
	name  string
	value *string
} {
	return []struct {
		name  string
		value *string
	}{
		{model.FieldName, in.Name},
		{model.FieldPurpose, in.Purpose},
		{model.FieldPolicyText, in.PolicyText},
		{model.FieldProcedure, in.Procedure},
	}
}

// editableStatuses — статусы, в которых содержимое политики редактируется.
var editableStatuses = map[string]bool{
	string(workflow.StatusDraft):           true,
	string(workflow.StatusAwaitingChanges): true,
}

// UpdateContent сохраняет изменённые поля содержимого и записывает по ревизии
// на каждое фактически изменившееся поле. Поле с неизменённым содержимым
// ревизию не порождает. Возвращает обновлённую политику и созданные ревизии.
func (s *PolicyService) UpdateContent(ctx context.Context, actor model.Actor, id string, in UpdateContentInput) (*model.Policy, []*model.PolicyRevision, error) {
	if !rbac.HasCapability(actor.Role, rbac.CapEdit) {
		return nil, nil, fmt.Errorf("%w: роль %s не редактирует политики", ErrNotPermitted, actor.Role)
	}

	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("получение политики для редактирования: %w", err)
	}

	if !editableStatuses[p.Status] {
		return nil, nil, fmt.Errorf("%w: политика в статусе %s не редактируется", ErrValidation, p.Status)
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, nil, fmt.Errorf("%w: название политики не может быть пустым", ErrValidation)
	}

	var created []*model.PolicyRevision
	for _, f := range in.fields() {
		if f.value == nil {
			continue
		}
		original := p.ContentField(f.name)
		modified := *f.value
		if original == modified {
			continue
		}

		rev, revErr := s.recordRevision(ctx, actor, p, f.name, original, modified)
		if revErr != nil {
			return nil, nil, revErr
		}
		created = append(created, rev)
	}

	if len(created) == 0 {
		// Ничего не изменилось — запись не трогаем.
		return p, nil, nil
	}

	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Purpose != nil {
		p.Purpose = *in.Purpose
	}
	if in.PolicyText != nil {
		p.PolicyText = *in.PolicyText
	}
	if in.Procedure != nil {
		p.Procedure = *in.Procedure
	}

	if err := s.policies.Update(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("обновление политики: %w", err)
	}
	s.cache.Delete(id)

	s.logger.Info("Содержимое политики обновлено",
		slog.String("policy_id", id),
		slog.Int("revisions", len(created)),
		slog.String("actor_id", actor.ID),
	)

	return p, created, nil
}

// recordRevision создаёт запись ревизии одного поля.
func (s *PolicyService) recordRevision(ctx context.Context, actor model.Actor, p *model.Policy, field, original, modified string) (*model.PolicyRevision, error) {
	number, err := s.numbers.NextRevisionNumber(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	metadata, err := diff.Metadata(original, modified)
	if err != nil {
		return nil, fmt.Errorf("сериализация diff: %w", err)
	}

	rev := &model.PolicyRevision{
		ID:              uuid.New().String(),
		PolicyID:        p.ID,
		FieldName:       field,
		RevisionNumber:  number,
		OriginalContent: original,
		ModifiedContent: modified,
		ChangeType:      model.DeriveChangeType(original, modified),
		Status:          model.RevisionPending,
		CreatedBy:       actor.ID,
		ChangeMetadata:  metadata,
	}

	if err := s.revisions.Create(ctx, rev); err != nil {
		return nil, fmt.Errorf("запись ревизии поля %s: %w", field, err)
	}
	return rev, nil
}

// Delete физически удаляет политику вместе с её ревизиями.
// Доступно только super-admin.
func (s *PolicyService) Delete(ctx context.Context, actor model.Actor, id string) error {
	if !rbac.HasCapability(actor.Role, rbac.CapDelete) {
		return fmt.Errorf("%w: удаление доступно только super-admin", ErrNotPermitted)
	}

	if err := s.policies.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление политики: %w", err)
	}
	s.cache.Delete(id)

	s.logger.Info("Политика удалена",
		slog.String("policy_id", id),
		slog.String("actor_id", actor.ID),
	)
	return nil
}
