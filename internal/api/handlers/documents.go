// documents.go — обработчики документного пайплайна:
// приём, статус, ретрай, верификация, аттестация, журнал.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/avinashDevlop/AgriLinkProject/internal/api/errors"
	"github.com/avinashDevlop/AgriLinkProject/internal/api/middleware"
	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
	"github.com/avinashDevlop/AgriLinkProject/internal/intake"
	"github.com/avinashDevlop/AgriLinkProject/internal/service"
)

// DocumentsHandler — обработчики документного пайплайна.
type DocumentsHandler struct {
	vs          *service.VerifyService
	maxFileSize int64
	logger      *slog.Logger
}

// NewDocumentsHandler создаёт обработчик документов.
func NewDocumentsHandler(vs *service.VerifyService, maxFileSize int64, logger *slog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		vs:          vs,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "documents_handler")),
	}
}

// SubmitDocument — POST /api/v1/documents.
// Принимает multipart/form-data: file — содержимое документа,
// document_kind — вид документа, source — источник (camera, gallery, file).
// Проводит документ через приём, хэширование и двойную загрузку.
func (h *DocumentsHandler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность пользователя")
		return
	}

	// Запас в один мегабайт на прочие поля формы
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		apierrors.FileTooLarge(w, "Документ превышает допустимый размер")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Отсутствует поле file в multipart-форме")
		return
	}
	defer file.Close()

	documentKind := r.FormValue("document_kind")
	if documentKind == "" {
		apierrors.ValidationError(w, "Отсутствует поле document_kind")
		return
	}

	sourceKind := model.ArtifactSource(r.FormValue("source"))
	if sourceKind == "" {
		sourceKind = model.SourceFile
	}

	status, opErr := h.vs.Submit(r.Context(), intake.Source{
		Kind:         sourceKind,
		DocumentKind: documentKind,
		Reader:       file,
	}, identity, middleware.SubjectFromContext(r.Context()))
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}

	writeJSON(w, http.StatusCreated, status)
}

// GetDocument — GET /api/v1/documents/{artifactId}.
// Возвращает снимок документа: артефакт, состояние, записи загрузок
// и верификаций, историю переходов.
func (h *DocumentsHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	status, opErr := h.vs.Status(chi.URLParam(r, "artifactId"))
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RetryUpload — POST /api/v1/documents/{artifactId}/retry.
// Повторяет загрузочную часть пайплайна из verification_failed.
func (h *DocumentsHandler) RetryUpload(w http.ResponseWriter, r *http.Request) {
	status, opErr := h.vs.Retry(r.Context(), chi.URLParam(r, "artifactId"),
		middleware.SubjectFromContext(r.Context()))
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// VerifyDocument — POST /api/v1/documents/{artifactId}/verify.
// Скачивает удалённую копию и сравнивает хэши. Несовпадение хэшей —
// штатный исход: ответ 200 с записью hash_mismatch.
func (h *DocumentsHandler) VerifyDocument(w http.ResponseWriter, r *http.Request) {
	rec, opErr := h.vs.Verify(r.Context(), chi.URLParam(r, "artifactId"),
		middleware.SubjectFromContext(r.Context()))
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// AttestDocument — POST /api/v1/documents/{artifactId}/attest.
// Фиксирует подтверждённый хэш во внешнем реестре.
func (h *DocumentsHandler) AttestDocument(w http.ResponseWriter, r *http.Request) {
	rec, opErr := h.vs.AttestOnLedger(r.Context(), chi.URLParam(r, "artifactId"),
		middleware.SubjectFromContext(r.Context()))
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetJournal — GET /api/v1/documents/{artifactId}/journal.
// Возвращает аудит-журнал попыток загрузки и верификации артефакта.
func (h *DocumentsHandler) GetJournal(w http.ResponseWriter, r *http.Request) {
	entries, opErr := h.vs.JournalEntries(chi.URLParam(r, "artifactId"))
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}
