// upload.go — сервис двойной загрузки документа во внешние хранилища.
//
// Каждая попытка загрузки — новая UploadRecord, журналируемая до начала
// передачи; неудачные записи сохраняются для аудита. На пару
// (артефакт, хранилище) одновременно допускается одна попытка:
// конкурирующий вызов отклоняется с UPLOAD_IN_PROGRESS.
// Недоступность контент-хранилища деградирует в помеченный плейсхолдер,
// который никогда не участвует в верификации.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/avinashDevlop/AgriLinkProject/internal/api/errors"
	"github.com/avinashDevlop/AgriLinkProject/internal/api/middleware"
	"github.com/avinashDevlop/AgriLinkProject/internal/client/objectstore"
	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
	"github.com/avinashDevlop/AgriLinkProject/internal/intake"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/journal"
)

// ObjectStore — изменяемое объектное хранилище (download URL по пути-ключу).
type ObjectStore interface {
	Put(ctx context.Context, objectPath string, r io.Reader, contentType string, size int64, progress objectstore.ProgressFunc) (string, error)
}

// ContentStore — контент-адресуемое хранилище (CID + gateway).
type ContentStore interface {
	Pin(ctx context.Context, r io.Reader, filename string, keyvalues map[string]string) (string, error)
	GatewayURL(cid string) string
}

// DualUploadService — сервис загрузки артефакта в оба хранилища.
type DualUploadService struct {
	reg      *Registry
	jrn      *journal.Journal
	in       *intake.Intake
	objects  ObjectStore
	contents ContentStore
	timeout  time.Duration
	logger   *slog.Logger

	// mu + inflight — guard "одна попытка на (артефакт, хранилище)"
	mu       sync.Mutex
	inflight map[string]bool
}

// NewDualUploadService создаёт сервис загрузки.
func NewDualUploadService(
	reg *Registry,
	jrn *journal.Journal,
	in *intake.Intake,
	objects ObjectStore,
	contents ContentStore,
	timeout time.Duration,
	logger *slog.Logger,
) *DualUploadService {
	return &DualUploadService{
		reg:      reg,
		jrn:      jrn,
		in:       in,
		objects:  objects,
		contents: contents,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "upload_service")),
		inflight: make(map[string]bool),
	}
}

// acquire захватывает guard пары (артефакт, хранилище).
func (s *DualUploadService) acquire(artifactID string, store model.StoreKind) bool {
	key := artifactID + "|" + string(store)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[key] {
		return false
	}
	s.inflight[key] = true
	return true
}

// release освобождает guard пары (артефакт, хранилище).
func (s *DualUploadService) release(artifactID string, store model.StoreKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, artifactID+"|"+string(store))
}

// UploadToObjectStore загружает артефакт в объектное хранилище.
//
// Поток:
//  1. Guard: одна попытка на (артефакт, object_store)
//  2. Новая UploadRecord + журнал (pending)
//  3. Открытие локальной копии
//  4. Передача с монотонным прогрессом и таймаутом
//  5. Фиксация исхода в журнале
//
// Возвращённая запись терминальна: succeeded с download URL либо failed.
func (s *DualUploadService) UploadToObjectStore(
	ctx context.Context,
	doc *Document,
	progress objectstore.ProgressFunc,
) (*model.UploadRecord, *OpError) {
	artifact := doc.Artifact

	// 1. Guard конкурирующих загрузок
	if !s.acquire(artifact.ID, model.StoreObject) {
		return nil, &OpError{
			StatusCode: 409,
			Code:       apierrors.CodeUploadInProgress,
			Message:    fmt.Sprintf("Загрузка артефакта %s в объектное хранилище уже идёт", artifact.ID),
		}
	}
	defer s.release(artifact.ID, model.StoreObject)

	// 2. Новая запись о попытке
	rec := &model.UploadRecord{
		ID:         uuid.New().String(),
		ArtifactID: artifact.ID,
		Store:      model.StoreObject,
		State:      model.UploadPending,
		StartedAt:  time.Now().UTC(),
	}
	if !s.reg.AddUpload(artifact.ID, rec) {
		return nil, s.supersededError(artifact.ID)
	}
	entry, err := s.jrn.BeginUpload(rec)
	if err != nil {
		s.logger.Error("Ошибка журналирования загрузки", slog.String("error", err.Error()))
		return nil, &OpError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка журнала",
		}
	}

	// 3. Открываем локальную копию
	f, err := s.in.Open(artifact)
	if err != nil {
		s.failRecord(rec, entry.EntryID, model.UploadErrNetwork, err.Error())
		middleware.UploadsTotal.WithLabelValues(string(model.StoreObject), "failure").Inc()
		return rec, &OpError{
			StatusCode: 422,
			Code:       apierrors.CodeIOError,
			Message:    "Локальная копия документа недоступна",
		}
	}
	defer f.Close()

	// 4. Передача с таймаутом; отмена привязана к артефакту
	upCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	detach := s.reg.AttachCancel(artifact.ID, cancel)
	defer detach()

	s.reg.UpdateUpload(rec, func(u *model.UploadRecord) {
		u.State = model.UploadInProgress
	})
	objectPath := doc.Identity.ObjectStorePath(artifact.Kind, artifact.Ext(), time.Now().UnixMilli())

	url, err := s.objects.Put(upCtx, objectPath, f, artifact.MediaType, artifact.SizeBytes,
		s.trackProgress(rec, progress))
	if err != nil {
		kind, message := classifyUploadError(upCtx, err)
		s.failRecord(rec, entry.EntryID, kind, message)
		middleware.UploadsTotal.WithLabelValues(string(model.StoreObject), "failure").Inc()
		s.logger.Warn("Загрузка в объектное хранилище не удалась",
			slog.String("artifact_id", artifact.ID),
			slog.String("error_kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return rec, uploadOpError(kind, message)
	}

	// 5. Успех
	now := time.Now().UTC()
	s.reg.UpdateUpload(rec, func(u *model.UploadRecord) {
		u.State = model.UploadSucceeded
		u.Progress = 1.0
		u.Reference = url
		u.CompletedAt = &now
	})
	if err := s.jrn.CompleteUpload(entry.EntryID, rec); err != nil {
		s.logger.Error("Ошибка фиксации загрузки в журнале (данные загружены)",
			slog.String("entry_id", entry.EntryID),
			slog.String("error", err.Error()),
		)
	}
	middleware.UploadsTotal.WithLabelValues(string(model.StoreObject), "success").Inc()

	s.logger.Info("Документ загружен в объектное хранилище",
		slog.String("artifact_id", artifact.ID),
		slog.String("object_path", objectPath),
		slog.Int64("size", artifact.SizeBytes),
	)

	return rec, nil
}

// UploadToContentStore загружает артефакт в контент-адресуемое хранилище.
// Хэш содержимого обязан быть вычислен до вызова: порядок
// "дайджест → затем контент-стор" не нарушается.
//
// Недоступность хранилища — мягкая деградация: запись терминальна
// (failed) с помеченным плейсхолдером вместо CID, ошибка не
// возвращается. Жёсткие исходы (отмена, невалидный артефакт)
// возвращают OpError.
func (s *DualUploadService) UploadToContentStore(
	ctx context.Context,
	doc *Document,
) (*model.UploadRecord, *OpError) {
	artifact := doc.Artifact

	// Дайджест строго предшествует загрузке в контент-стор
	if artifact.ContentHash == "" {
		return nil, &OpError{
			StatusCode: 409,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Хэш артефакта %s ещё не вычислен", artifact.ID),
		}
	}

	if !s.acquire(artifact.ID, model.StoreContent) {
		return nil, &OpError{
			StatusCode: 409,
			Code:       apierrors.CodeUploadInProgress,
			Message:    fmt.Sprintf("Загрузка артефакта %s в контент-хранилище уже идёт", artifact.ID),
		}
	}
	defer s.release(artifact.ID, model.StoreContent)

	rec := &model.UploadRecord{
		ID:         uuid.New().String(),
		ArtifactID: artifact.ID,
		Store:      model.StoreContent,
		State:      model.UploadPending,
		StartedAt:  time.Now().UTC(),
	}
	if !s.reg.AddUpload(artifact.ID, rec) {
		return nil, s.supersededError(artifact.ID)
	}
	entry, err := s.jrn.BeginUpload(rec)
	if err != nil {
		s.logger.Error("Ошибка журналирования загрузки", slog.String("error", err.Error()))
		return nil, &OpError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка журнала",
		}
	}

	f, err := s.in.Open(artifact)
	if err != nil {
		s.failRecord(rec, entry.EntryID, model.UploadErrNetwork, err.Error())
		middleware.UploadsTotal.WithLabelValues(string(model.StoreContent), "failure").Inc()
		return rec, &OpError{
			StatusCode: 422,
			Code:       apierrors.CodeIOError,
			Message:    "Локальная копия документа недоступна",
		}
	}
	defer f.Close()

	upCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	detach := s.reg.AttachCancel(artifact.ID, cancel)
	defer detach()

	s.reg.UpdateUpload(rec, func(u *model.UploadRecord) {
		u.State = model.UploadInProgress
	})
	filename := artifact.Kind + artifact.Ext()
	keyvalues := map[string]string{
		"phone":     doc.Identity.Phone,
		"user_type": string(doc.Identity.UserType),
		"sha256":    artifact.ContentHash,
	}

	cid, err := s.contents.Pin(upCtx, f, filename, keyvalues)
	if err != nil {
		kind, message := classifyUploadError(upCtx, err)
		if kind == model.UploadErrCancelled {
			s.failRecord(rec, entry.EntryID, kind, message)
			middleware.UploadsTotal.WithLabelValues(string(model.StoreContent), "failure").Inc()
			return rec, uploadOpError(kind, message)
		}

		// Мягкая деградация: терминальный failed с помеченным
		// плейсхолдером. Плейсхолдер не верифицируем.
		s.reg.UpdateUpload(rec, func(u *model.UploadRecord) {
			u.Reference = fmt.Sprintf("unpinned_%d", time.Now().UnixMilli())
			u.Placeholder = true
		})
		s.failRecord(rec, entry.EntryID, kind, message)
		middleware.UploadsTotal.WithLabelValues(string(model.StoreContent), "degraded").Inc()
		s.logger.Warn("Контент-хранилище недоступно, записан плейсхолдер",
			slog.String("artifact_id", artifact.ID),
			slog.String("placeholder", rec.Reference),
			slog.String("error", err.Error()),
		)
		return rec, nil
	}

	now := time.Now().UTC()
	s.reg.UpdateUpload(rec, func(u *model.UploadRecord) {
		u.State = model.UploadSucceeded
		u.Progress = 1.0
		u.Reference = cid
		u.CompletedAt = &now
	})
	if err := s.jrn.CompleteUpload(entry.EntryID, rec); err != nil {
		s.logger.Error("Ошибка фиксации загрузки в журнале (данные загружены)",
			slog.String("entry_id", entry.EntryID),
			slog.String("error", err.Error()),
		)
	}
	middleware.UploadsTotal.WithLabelValues(string(model.StoreContent), "success").Inc()

	s.logger.Info("Документ закреплён в контент-хранилище",
		slog.String("artifact_id", artifact.ID),
		slog.String("cid", cid),
	)

	return rec, nil
}

// trackProgress оборачивает колбэк прогресса: доля записывается в
// UploadRecord под блокировкой реестра и остаётся монотонно
// неубывающей.
func (s *DualUploadService) trackProgress(rec *model.UploadRecord, progress objectstore.ProgressFunc) objectstore.ProgressFunc {
	return func(fraction float64) {
		s.reg.UpdateUpload(rec, func(u *model.UploadRecord) {
			if fraction > u.Progress {
				u.Progress = fraction
			}
		})
		if progress != nil {
			progress(fraction)
		}
	}
}

// failRecord переводит запись в failed и фиксирует исход в журнале.
func (s *DualUploadService) failRecord(rec *model.UploadRecord, entryID string, kind model.UploadErrorKind, message string) {
	now := time.Now().UTC()
	s.reg.UpdateUpload(rec, func(u *model.UploadRecord) {
		u.State = model.UploadFailed
		u.ErrorKind = kind
		u.ErrorMessage = message
		u.CompletedAt = &now
	})
	if err := s.jrn.CompleteUpload(entryID, rec); err != nil {
		s.logger.Error("Ошибка фиксации неудачной загрузки в журнале",
			slog.String("entry_id", entryID),
			slog.String("error", err.Error()),
		)
	}
}

// supersededError — артефакт вытеснен более новым документом владельца.
func (s *DualUploadService) supersededError(artifactID string) *OpError {
	return &OpError{
		StatusCode: 409,
		Code:       apierrors.CodeInvalidTransition,
		Message:    fmt.Sprintf("Артефакт %s вытеснен более новым документом", artifactID),
	}
}

// classifyUploadError классифицирует ошибку передачи.
func classifyUploadError(ctx context.Context, err error) (model.UploadErrorKind, string) {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return model.UploadErrCancelled, "операция отменена"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return model.UploadErrTimeout, "превышен таймаут загрузки"
	default:
		return model.UploadErrNetwork, err.Error()
	}
}

// uploadOpError строит OpError по классификации ошибки передачи.
func uploadOpError(kind model.UploadErrorKind, message string) *OpError {
	switch kind {
	case model.UploadErrCancelled:
		return &OpError{StatusCode: 400, Code: apierrors.CodeUserCancelled, Message: message}
	case model.UploadErrTimeout:
		return &OpError{StatusCode: 504, Code: apierrors.CodeUploadError, Message: message}
	default:
		return &OpError{StatusCode: 502, Code: apierrors.CodeUploadError, Message: message}
	}
}
