package model

import "time"

// RoleOverride — локальное дополнение роли пользователя.
// Хранится в таблице role_overrides. Применяется auth middleware поверх
// роли, вычисленной из групп IdP: итоговая роль = max(роль IdP, дополнение).
type RoleOverride struct {
	// ID — числовой идентификатор записи
	ID int64
	// KeycloakUserID — sub пользователя в Keycloak
	KeycloakUserID string
	// Username — имя пользователя (для отображения)
	Username string
	// AdditionalRole — дополнительная роль (read-only, edit, publish, super-admin)
	AdditionalRole string
	// CreatedBy — кто назначил дополнение
	CreatedBy string
	// CreatedAt — время создания
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
