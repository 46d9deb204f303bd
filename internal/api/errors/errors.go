// Пакет errors — конструкторы стандартных ошибок API PolicyHub.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	// CodeForbidden — maker/checker: создатель не утверждает собственную работу.
	CodeForbidden = "FORBIDDEN"
	// CodeNotPermitted — роль актора не допускает операцию.
	CodeNotPermitted = "NOT_PERMITTED"
	// CodeInvalidTransition — пара статусов отсутствует в матрице переходов.
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConflict          = "CONFLICT"
	// CodeNumberGeneration — генератор номеров исчерпал попытки.
	CodeNumberGeneration = "NUMBER_GENERATION_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате PolicyHub.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 нарушение maker/checker.
// Код отличается от NOT_PERMITTED: клиент должен видеть разницу между
// "ваша роль мала" и "нельзя утверждать собственную работу".
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// NotPermitted — 403 недостаточная роль.
func NotPermitted(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeNotPermitted, message)
}

// InvalidTransition — 409 недопустимый переход статуса.
func InvalidTransition(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeInvalidTransition, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс, повторный вердикт).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// NumberGeneration — 503 номер не выдан после всех попыток.
func NumberGeneration(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeNumberGeneration, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
