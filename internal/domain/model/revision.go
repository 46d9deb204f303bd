package model

import "time"

// ChangeType — тип изменения поля в ревизии.
// Выводится детерминированно из original/modified содержимого.
type ChangeType string

const (
	// ChangeAddition — поле было пустым, появилось содержимое
	ChangeAddition ChangeType = "addition"
	// ChangeDeletion — содержимое было удалено
	ChangeDeletion ChangeType = "deletion"
	// ChangeModification — содержимое изменено
	ChangeModification ChangeType = "modification"
)

// Статусы ревизии. Ревизия создаётся pending и переходит ровно один раз
// в accepted или rejected.
const (
	RevisionPending  = "pending"
	RevisionAccepted = "accepted"
	RevisionRejected = "rejected"
)

// PolicyRevision — запись об изменении одного поля политики.
// Хранится в таблице policy_revisions.
//
// Ревизии — append-only журнал предложенных изменений. Принятие ревизии
// НЕ переносит modified_content в поле политики: фактическое содержимое —
// то, что сохранила форма редактирования. Ревизии — след для аудита и
// обсуждения, не механизм применения правок.
type PolicyRevision struct {
	// ID — UUID записи
	ID string
	// PolicyID — политика-владелец
	PolicyID string
	// FieldName — имя поля содержимого (name, purpose, policy_text, procedure)
	FieldName string
	// RevisionNumber — монотонный счётчик в рамках политики (не глобальный)
	RevisionNumber int
	// OriginalContent — полное значение поля до изменения
	OriginalContent string
	// ModifiedContent — полное значение поля после изменения
	ModifiedContent string
	// ChangeType — addition, deletion или modification
	ChangeType ChangeType
	// Status — pending, accepted или rejected
	Status string
	// ReviewedBy — кто рассмотрел ревизию (пусто для pending)
	ReviewedBy string
	// ReviewedAt — когда рассмотрена
	ReviewedAt *time.Time
	// ReviewComment — комментарий рецензента
	ReviewComment string
	// CreatedBy — автор изменения
	CreatedBy string
	// CreatedAt — время создания
	CreatedAt time.Time
	// ChangeMetadata — пословный diff для отображения (JSON, непрозрачный
	// для бизнес-логики)
	ChangeMetadata []byte
}

// DeriveChangeType выводит тип изменения из содержимого.
// addition — original пустой, deletion — modified пустой, иначе modification.
func DeriveChangeType(original, modified string) ChangeType {
	switch {
	case isBlank(original):
		return ChangeAddition
	case isBlank(modified):
		return ChangeDeletion
	default:
		return ChangeModification
	}
}

// isBlank проверяет, что строка пуста или состоит из пробельных символов.
func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
