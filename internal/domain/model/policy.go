package model

import "time"

// PolicyType — тип политики. Определяет префикс номера (HR-001, IT-042 и т.д.).
type PolicyType string

const (
	PolicyTypeHR    PolicyType = "HR"
	PolicyTypeIT    PolicyType = "IT"
	PolicyTypeFIN   PolicyType = "FIN"
	PolicyTypeOPS   PolicyType = "OPS"
	PolicyTypeLEGAL PolicyType = "LEGAL"
)

// IsValidPolicyType проверяет, является ли строка допустимым типом политики.
func IsValidPolicyType(t string) bool {
	switch PolicyType(t) {
	case PolicyTypeHR, PolicyTypeIT, PolicyTypeFIN, PolicyTypeOPS, PolicyTypeLEGAL:
		return true
	default:
		return false
	}
}

// Поля содержимого политики, версионируемые независимо друг от друга.
const (
	FieldName       = "name"
	FieldPurpose    = "purpose"
	FieldPolicyText = "policy_text"
	FieldProcedure  = "procedure"
)

// IsContentField проверяет, является ли имя поля версионируемым полем содержимого.
func IsContentField(name string) bool {
	switch name {
	case FieldName, FieldPurpose, FieldPolicyText, FieldProcedure:
		return true
	default:
		return false
	}
}

// Policy — версия политики. Хранится в таблице policies.
//
// Все версии одной политики разделяют PolicyNumber; связь версий идёт через
// ParentPolicyID (всегда указывает на корень семейства, не на непосредственного
// предшественника). CreatorID назначается один раз при создании первой версии
// и распространяется на все клоны без изменений — на этом держится контроль
// "создатель не утверждает сам себя".
type Policy struct {
	// ID — UUID записи
	ID string
	// Name — название политики
	Name string
	// Purpose — назначение (разметка, непрозрачный текст)
	Purpose string
	// PolicyText — основной текст политики (разметка, непрозрачный текст)
	PolicyText string
	// Procedure — процедура исполнения (разметка, непрозрачный текст)
	Procedure string
	// PolicyNumber — номер политики, стабилен для всего семейства версий
	PolicyNumber string
	// PolicyType — тип политики (HR, IT, FIN, OPS, LEGAL)
	PolicyType PolicyType
	// Status — канонический статус workflow
	Status string
	// CreatorID — автор первой версии семейства, неизменяем
	CreatorID string
	// PublisherID — кто опубликовал эту версию (пусто, если не публиковалась)
	PublisherID string
	// Reviewer — контакт рецензента (legacy, свободный текст, не используется
	// для контроля доступа)
	Reviewer string
	// ParentPolicyID — nil для оригинала; для клонов — id корня семейства
	ParentPolicyID *string
	// ReviewerComment — комментарий рецензента (reject / awaiting-changes / publish)
	ReviewerComment string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
	// PublishedAt — время публикации этой версии (не сбрасывается при архивации)
	PublishedAt *time.Time
	// ArchivedAt — время архивации; установлен тогда и только тогда, когда
	// status == archived
	ArchivedAt *time.Time
}

// FamilyRootID возвращает id корня семейства версий.
func (p *Policy) FamilyRootID() string {
	if p.ParentPolicyID != nil {
		return *p.ParentPolicyID
	}
	return p.ID
}

// ContentField возвращает значение версионируемого поля содержимого по имени.
func (p *Policy) ContentField(name string) string {
	switch name {
	case FieldName:
		return p.Name
	case FieldPurpose:
		return p.Purpose
	case FieldPolicyText:
		return p.PolicyText
	case FieldProcedure:
		return p.Procedure
	default:
		return ""
	}
}

// Actor — субъект операции: идентификатор из JWT и эффективная роль.
type Actor struct {
	// ID — sub из JWT (Keycloak user ID)
	ID string
	// Role — эффективная роль (read-only, edit, publish, super-admin)
	Role string
}
