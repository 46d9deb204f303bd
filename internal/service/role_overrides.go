// role_overrides.go — сервис локальных дополнений ролей.
// Источник ролей — группы Keycloak; дополнение из БД может роль только
// повысить. Управление дополнениями доступно super-admin.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/policyhub/internal/domain/model"
	"github.com/bigkaa/policyhub/internal/domain/rbac"
	"github.com/bigkaa/policyhub/internal/repository"
)

// RoleOverrideService — сервис управления дополнениями ролей.
type RoleOverrideService struct {
	roleRepo repository.RoleOverrideRepository
	logger   *slog.Logger
}

// NewRoleOverrideService создаёт сервис дополнений ролей.
func NewRoleOverrideService(roleRepo repository.RoleOverrideRepository, logger *slog.Logger) *RoleOverrideService {
	return &RoleOverrideService{
		roleRepo: roleRepo,
		logger:   logger.With(slog.String("component", "role_override_service")),
	}
}

// Set создаёт или обновляет дополнение роли пользователя.
func (s *RoleOverrideService) Set(ctx context.Context, actor model.Actor, keycloakUserID, username, role string) (*model.RoleOverride, error) {
	if !rbac.HasCapability(actor.Role, rbac.CapDelete) {
		// Управление ролями — привилегия уровня super-admin.
		return nil, fmt.Errorf("%w: управление ролями доступно только super-admin", ErrNotPermitted)
	}
	if strings.TrimSpace(keycloakUserID) == "" {
		return nil, fmt.Errorf("%w: keycloak_user_id обязателен", ErrValidation)
	}
	if !rbac.IsValidRole(role) {
		return nil, fmt.Errorf("%w: недопустимая роль %q", ErrValidation, role)
	}

	ro := &model.RoleOverride{
		KeycloakUserID: keycloakUserID,
		Username:       username,
		AdditionalRole: role,
		CreatedBy:      actor.ID,
	}
	if err := s.roleRepo.Upsert(ctx, ro); err != nil {
		return nil, fmt.Errorf("сохранение дополнения роли: %w", err)
	}

	s.logger.Info("Дополнение роли установлено",
		slog.String("keycloak_user_id", keycloakUserID),
		slog.String("role", role),
		slog.String("actor_id", actor.ID),
	)
	return ro, nil
}

// List возвращает все дополнения ролей с пагинацией.
func (s *RoleOverrideService) List(ctx context.Context, actor model.Actor, limit, offset int) ([]*model.RoleOverride, int, error) {
	if !rbac.HasCapability(actor.Role, rbac.CapDelete) {
		return nil, 0, fmt.Errorf("%w: управление ролями доступно только super-admin", ErrNotPermitted)
	}

	list, err := s.roleRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение дополнений ролей: %w", err)
	}
	total, err := s.roleRepo.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт дополнений ролей: %w", err)
	}
	return list, total, nil
}

// Delete удаляет дополнение роли пользователя.
func (s *RoleOverrideService) Delete(ctx context.Context, actor model.Actor, keycloakUserID string) error {
	if !rbac.HasCapability(actor.Role, rbac.CapDelete) {
		return fmt.Errorf("%w: управление ролями доступно только super-admin", ErrNotPermitted)
	}

	if err := s.roleRepo.Delete(ctx, keycloakUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление дополнения роли: %w", err)
	}

	s.logger.Info("Дополнение роли удалено",
		slog.String("keycloak_user_id", keycloakUserID),
		slog.String("actor_id", actor.ID),
	)
	return nil
}
