// Пакет rbac — роли и правила доступа PolicyHub.
// Четыре роли образуют лестницу привилегий: read-only < edit < publish < super-admin.
// Итоговая роль пользователя = max(роль из IdP, локальное дополнение из БД);
// роль можно только повысить, не понизить.
//
// Поверх лестницы действует одно сквозное исключение — maker/checker:
// актор с ролью publish не может рецензировать политику, которую сам создал.
// Super-admin от этого ограничения освобождён.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleReadOnly   = "read-only"
	RoleEdit       = "edit"
	RolePublish    = "publish"
	RoleSuperAdmin = "super-admin"
)

// roleWeight — вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleReadOnly:   1,
	RoleEdit:       2,
	RolePublish:    3,
	RoleSuperAdmin: 4,
}

// Capability — именованная способность роли.
type Capability string

const (
	// CapView — чтение политик и ревизий.
	CapView Capability = "view"
	// CapEdit — создание и редактирование черновиков.
	CapEdit Capability = "edit"
	// CapReview — review-действия: approve, publish, reject, request-changes.
	CapReview Capability = "review"
	// CapArchive — архивация опубликованной политики и восстановление из архива.
	CapArchive Capability = "archive"
	// CapDelete — физическое удаление политики вместе с ревизиями.
	CapDelete Capability = "delete"
)

// roleCapabilities — набор способностей каждой роли.
// Maker/checker сюда намеренно не входит: это не способность роли,
// а реляционное ограничение (актор vs создатель), см. CanReview.
var roleCapabilities = map[string]map[Capability]bool{
	RoleReadOnly:   {CapView: true},
	RoleEdit:       {CapView: true, CapEdit: true},
	RolePublish:    {CapView: true, CapEdit: true, CapReview: true},
	RoleSuperAdmin: {CapView: true, CapEdit: true, CapReview: true, CapArchive: true, CapDelete: true},
}

// HasCapability проверяет, обладает ли роль указанной способностью.
func HasCapability(role string, cap Capability) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	return caps[cap]
}

// CanReview — предикат maker/checker.
// Возвращает true, если актор вправе рецензировать политику с указанным
// создателем: super-admin — всегда, publish — только чужие политики.
// Роли без CapReview всегда получают false (это случай NotPermitted,
// а не Forbidden — различие делает сервисный слой).
func CanReview(role, actorID, creatorID string) bool {
	if role == RoleSuperAdmin {
		return true
	}
	return role == RolePublish && actorID != creatorID
}

// EffectiveRole вычисляет итоговую роль = max(idpRole, roleOverride).
// Если roleOverride == nil, возвращает idpRole.
// Роль можно только повысить, не понизить.
func EffectiveRole(idpRole string, roleOverride *string) string {
	if roleOverride == nil {
		return idpRole
	}
	return maxRole(idpRole, *roleOverride)
}

// maxRole возвращает роль с максимальными привилегиями из двух.
func maxRole(a, b string) string {
	wa := roleWeight[a]
	wb := roleWeight[b]
	if wa >= wb {
		return a
	}
	return b
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст — возвращает пустую строку.
func HighestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		highest = maxRole(highest, r)
	}
	return highest
}

// GroupMapping — маппинг групп IdP в роли PolicyHub.
type GroupMapping struct {
	SuperAdminGroups []string
	PublishGroups    []string
	EditGroups       []string
	ReadOnlyGroups   []string
}

// MapGroupsToRole определяет роль пользователя на основе его групп IdP.
// Возвращает максимальную роль из всех совпадений.
// Если ни одна группа не совпала — возвращает пустую строку.
func MapGroupsToRole(groups []string, mapping GroupMapping) string {
	superSet := toSet(mapping.SuperAdminGroups)
	publishSet := toSet(mapping.PublishGroups)
	editSet := toSet(mapping.EditGroups)
	readonlySet := toSet(mapping.ReadOnlyGroups)

	var roles []string
	for _, g := range groups {
		if superSet[g] {
			roles = append(roles, RoleSuperAdmin)
		}
		if publishSet[g] {
			roles = append(roles, RolePublish)
		}
		if editSet[g] {
			roles = append(roles, RoleEdit)
		}
		if readonlySet[g] {
			roles = append(roles, RoleReadOnly)
		}
	}

	return HighestRole(roles)
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
