// Пакет workflow — конечный автомат статусов политики.
//
// Жизненный цикл:
//
//	draft → under-review → (awaiting-changes | approved | published | rejected)
//	awaiting-changes → draft | under-review
//	published → draft (клонирование для обновления) | archived
//	archived → draft (восстановление)
//
// Единственный канонический модуль проверки переходов: все сравнения статусов
// в системе идут через него, без строковых сравнений по месту вызова.
// Историческое написание "under review" (с пробелом) принимается наравне с
// "under-review" и нормализуется на границе хранения.
//
// Функции чистые и потокобезопасные: автомат не хранит текущее состояние,
// состояние живёт в записи политики.
package workflow

import (
	"fmt"

	"github.com/bigkaa/policyhub/internal/domain/rbac"
)

// Status — канонический статус политики.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusUnderReview     Status = "under-review"
	StatusAwaitingChanges Status = "awaiting-changes"
	StatusApproved        Status = "approved"
	StatusPublished       Status = "published"
	StatusArchived        Status = "archived"
	StatusRejected        Status = "rejected"
)

// legacyUnderReview — историческое написание under-review, встречающееся
// в данных. Принимается на входе, никогда не записывается.
const legacyUnderReview = "under review"

// Rule — требования к одному переходу.
type Rule struct {
	// Roles — роли, которым переход доступен безусловно.
	Roles map[string]bool
	// CreatorRoles — роли, которым переход доступен только если актор —
	// создатель политики (например, edit при draft → under-review).
	CreatorRoles map[string]bool
	// Review — review-переход: действует maker/checker (§ rbac.CanReview).
	Review bool
	// CommentRequired — переход требует непустой комментарий рецензента.
	CommentRequired bool
}

// transitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — правила для каждого целевого статуса.
var transitions = map[Status]map[Status]Rule{
	StatusDraft: {
		StatusUnderReview: {
			Roles:        roles(rbac.RolePublish, rbac.RoleSuperAdmin),
			CreatorRoles: roles(rbac.RoleEdit),
		},
	},
	StatusUnderReview: {
		// Возврат в черновик — не review-действие: publisher может вернуть
		// и собственную политику.
		StatusDraft: {
			Roles: roles(rbac.RolePublish, rbac.RoleSuperAdmin),
		},
		StatusAwaitingChanges: {
			Roles:           roles(rbac.RolePublish, rbac.RoleSuperAdmin),
			Review:          true,
			CommentRequired: true,
		},
		StatusApproved: {
			Roles:  roles(rbac.RolePublish, rbac.RoleSuperAdmin),
			Review: true,
		},
		StatusPublished: {
			Roles:  roles(rbac.RolePublish, rbac.RoleSuperAdmin),
			Review: true,
		},
		StatusRejected: {
			Roles:  roles(rbac.RolePublish, rbac.RoleSuperAdmin),
			Review: true,
		},
	},
	StatusAwaitingChanges: {
		StatusDraft: {
			Roles:        roles(rbac.RoleSuperAdmin),
			CreatorRoles: roles(rbac.RoleEdit, rbac.RolePublish),
		},
		StatusUnderReview: {
			Roles:        roles(rbac.RoleSuperAdmin),
			CreatorRoles: roles(rbac.RoleEdit, rbac.RolePublish),
		},
	},
	StatusApproved: {},
	StatusPublished: {
		// published → draft — путь "обновить политику": источник остаётся
		// published, создаётся клон-черновик (см. service.CloneForUpdate).
		StatusDraft: {
			Roles: roles(rbac.RolePublish, rbac.RoleSuperAdmin),
		},
		StatusArchived: {
			Roles: roles(rbac.RoleSuperAdmin),
		},
	},
	StatusArchived: {
		// Восстановление из архива.
		StatusDraft: {
			Roles: roles(rbac.RoleSuperAdmin),
		},
	},
	StatusRejected: {},
}

// initialStatuses — допустимые начальные статусы при создании политики.
var initialStatuses = map[Status]map[string]bool{
	StatusDraft:       roles(rbac.RoleEdit, rbac.RolePublish, rbac.RoleSuperAdmin),
	StatusUnderReview: roles(rbac.RolePublish, rbac.RoleSuperAdmin),
}

// Parse преобразует строку в канонический статус.
// Принимает оба написания under-review. Возвращает ошибку для
// недопустимых значений.
func Parse(s string) (Status, error) {
	if s == legacyUnderReview {
		return StatusUnderReview, nil
	}
	st := Status(s)
	if !isValid(st) {
		return "", fmt.Errorf("недопустимый статус: %q", s)
	}
	return st, nil
}

// Canonical нормализует строку статуса для хранения и сравнения.
// Неизвестные значения возвращаются как есть: нормализация не должна
// терять данные при чтении исторических записей.
func Canonical(s string) string {
	if s == legacyUnderReview {
		return string(StatusUnderReview)
	}
	return s
}

// RuleFor возвращает правила перехода from → to.
// Второе значение false, если переход не описан в матрице.
func RuleFor(from, to Status) (Rule, bool) {
	targets, ok := transitions[from]
	if !ok {
		return Rule{}, false
	}
	rule, ok := targets[to]
	return rule, ok
}

// CanTransition проверяет, доступен ли переход from → to роли в принципе
// (без учёта maker/checker и принадлежности создателю).
func CanTransition(from, to Status, role string) bool {
	rule, ok := RuleFor(from, to)
	if !ok {
		return false
	}
	return rule.Roles[role] || rule.CreatorRoles[role]
}

// IsReviewAction возвращает true для целевых статусов, переход в которые
// является review-действием: approved, published, rejected, awaiting-changes.
func IsReviewAction(to Status) bool {
	switch to {
	case StatusApproved, StatusPublished, StatusRejected, StatusAwaitingChanges:
		return true
	default:
		return false
	}
}

// CanCreate проверяет, может ли роль создать политику в указанном
// начальном статусе.
func CanCreate(initial Status, role string) bool {
	allowed, ok := initialStatuses[initial]
	if !ok {
		return false
	}
	return allowed[role]
}

// AllStatuses возвращает все канонические статусы.
func AllStatuses() []Status {
	return []Status{
		StatusDraft,
		StatusUnderReview,
		StatusAwaitingChanges,
		StatusApproved,
		StatusPublished,
		StatusArchived,
		StatusRejected,
	}
}

// isValid проверяет, является ли значение каноническим статусом.
func isValid(s Status) bool {
	switch s {
	case StatusDraft, StatusUnderReview, StatusAwaitingChanges,
		StatusApproved, StatusPublished, StatusArchived, StatusRejected:
		return true
	default:
		return false
	}
}

// roles — маленький конструктор набора ролей для матрицы.
func roles(rr ...string) map[string]bool {
	m := make(map[string]bool, len(rr))
	for _, r := range rr {
		m[r] = true
	}
	return m
}
