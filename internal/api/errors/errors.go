// Пакет errors — конструкторы стандартных ошибок API Verification Module.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
//
// HASH_MISMATCH кодом ошибки не является: несовпадение хэшей — штатный
// исход верификации и отдаётся в теле документа со статусом 200.
package errors //nolint:revive // конфликт имени со stdlib устраивается алиасом apierrors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeUserCancelled     = "USER_CANCELLED"
	CodeIOError           = "IO_ERROR"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeUploadError       = "UPLOAD_ERROR"
	CodeUploadInProgress  = "UPLOAD_IN_PROGRESS"
	CodeRetrievalError    = "RETRIEVAL_ERROR"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeLedgerUnavailable = "LEDGER_UNAVAILABLE"
	CodeInternalError     = "INTERNAL_ERROR"

	// HASH_MISMATCH — штатный исход верификации; отдаётся статусом 200
	// в записи верификации, HTTP-ошибкой не является
	CodeHashMismatch = "HASH_MISMATCH"
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

// WriteError записывает ответ ошибки в стандартном формате.
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

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// PermissionDenied — 403 источник документа недоступен из-за прав.
func PermissionDenied(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodePermissionDenied, message)
}

// UserCancelled — 400 операция прервана пользователем.
func UserCancelled(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeUserCancelled, message)
}

// IOError — 422 документ не удалось прочитать или он пуст.
func IOError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeIOError, message)
}

// FileTooLarge — 413 документ превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// UploadError — 502 внешнее хранилище не приняло документ.
func UploadError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeUploadError, message)
}

// UploadInProgress — 409 загрузка этого артефакта уже идёт.
func UploadInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeUploadInProgress, message)
}

// RetrievalError — 502 удалённую копию не удалось получить.
func RetrievalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeRetrievalError, message)
}

// InvalidTransition — 409 операция недопустима в текущем состоянии документа.
func InvalidTransition(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeInvalidTransition, message)
}

// LedgerUnavailable — 503 реестр аттестаций недоступен (мягкая деградация).
func LedgerUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeLedgerUnavailable, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
