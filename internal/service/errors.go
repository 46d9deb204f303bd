// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"

	"github.com/bigkaa/policyhub/internal/numbering"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс или повторное действие).
	ErrConflict = errors.New("конфликт — действие уже выполнено")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidTransition — переход статуса не описан в матрице workflow.
	ErrInvalidTransition = errors.New("недопустимый переход статуса")
	// ErrForbidden — maker/checker: создатель рецензирует собственное изменение.
	// Роль актора при этом достаточна — запрещена конкретная пара актор/создатель.
	ErrForbidden = errors.New("рецензирование собственных изменений запрещено")
	// ErrNotPermitted — роли актора не хватает для операции.
	ErrNotPermitted = errors.New("операция недоступна для роли")
	// ErrNumberGeneration — генератор номеров исчерпал попытки.
	ErrNumberGeneration = numbering.ErrNumberGeneration
)
