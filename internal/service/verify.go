// verify.go — координатор пайплайна верификации документа:
// приём → хэш → двойная загрузка → скачивание и сравнение →
// опциональная аттестация в реестре.
//
// Хэш содержимого вычисляется ровно один раз, сразу после приёма и
// строго до загрузки в контент-хранилище. Верификация всегда скачивает
// удалённую копию заново и сравнивает её хэш с хэшем, зафиксированным
// при загрузке; локальный файл повторно не читается.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/avinashDevlop/AgriLinkProject/internal/api/errors"
	"github.com/avinashDevlop/AgriLinkProject/internal/api/middleware"
	"github.com/avinashDevlop/AgriLinkProject/internal/client/ledger"
	"github.com/avinashDevlop/AgriLinkProject/internal/domain/docstate"
	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
	"github.com/avinashDevlop/AgriLinkProject/internal/hashing"
	"github.com/avinashDevlop/AgriLinkProject/internal/intake"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/journal"
)

// ContentFetcher — получение удалённой копии из контент-хранилища.
type ContentFetcher interface {
	Fetch(ctx context.Context, cid string) (*http.Response, error)
}

// Ledger — внешний реестр аттестаций.
type Ledger interface {
	Enabled() bool
	Attest(ctx context.Context, documentHash, identity string) (*ledger.Attestation, error)
}

// VerifyService — координатор пайплайна верификации.
type VerifyService struct {
	reg          *Registry
	jrn          *journal.Journal
	in           *intake.Intake
	uploads      *DualUploadService
	profiles     *ProfileService
	fetcher      ContentFetcher
	ledger       Ledger
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewVerifyService создаёт координатор пайплайна.
func NewVerifyService(
	reg *Registry,
	jrn *journal.Journal,
	in *intake.Intake,
	uploads *DualUploadService,
	profiles *ProfileService,
	fetcher ContentFetcher,
	ldg Ledger,
	fetchTimeout time.Duration,
	logger *slog.Logger,
) *VerifyService {
	return &VerifyService{
		reg:          reg,
		jrn:          jrn,
		in:           in,
		uploads:      uploads,
		profiles:     profiles,
		fetcher:      fetcher,
		ledger:       ldg,
		fetchTimeout: fetchTimeout,
		logger:       logger.With(slog.String("component", "verify_service")),
	}
}

// Submit принимает документ и проводит его через загрузочную часть
// пайплайна.
//
// Шаги:
//  1. Приём документа во временный каталог
//  2. Вычисление SHA-256 локальной копии (ровно один раз)
//  3. Регистрация артефакта; предыдущий документ владельца вытесняется
//  4. Загрузка в объектное хранилище
//  5. Загрузка в контент-хранилище (после хэша, возможна деградация)
//  6. Перевод состояния и частичное обновление профиля
//
// Несовпадения и деградации не прерывают пайплайн: итог отражается
// в снимке документа.
func (s *VerifyService) Submit(ctx context.Context, src intake.Source, id model.Identity, subject string) (*DocumentStatus, *OpError) {
	id = id.Sanitized()
	if err := id.Validate(); err != nil {
		return nil, &OpError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    err.Error(),
		}
	}

	// 1. Приём
	artifact, err := s.in.Capture(ctx, src)
	if err != nil {
		return nil, intakeOpError(err)
	}

	// 2. Хэш до любых загрузок
	hash, err := hashing.DigestFile(artifact.LocalPath)
	if err != nil {
		_ = s.in.Discard(artifact)
		return nil, &OpError{
			StatusCode: 422,
			Code:       apierrors.CodeIOError,
			Message:    "Не удалось вычислить хэш документа",
		}
	}
	if err := artifact.SetContentHash(hash); err != nil {
		_ = s.in.Discard(artifact)
		return nil, &OpError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    err.Error(),
		}
	}

	s.logger.Info("Документ принят",
		slog.String("artifact_id", artifact.ID),
		slog.String("kind", artifact.Kind),
		slog.String("sha256", hash),
		slog.Int64("size", artifact.SizeBytes),
	)

	// 3. Регистрация (вытесняет предыдущий документ владельца)
	doc := s.reg.Register(artifact, id)

	// 4-5. Двойная загрузка
	return s.runUploads(ctx, doc, subject)
}

// Retry повторяет загрузочную часть пайплайна для существующего
// артефакта. Каждая попытка создаёт новые записи загрузки; записи
// предыдущих попыток сохраняются.
func (s *VerifyService) Retry(ctx context.Context, artifactID, subject string) (*DocumentStatus, *OpError) {
	doc, ok := s.reg.Get(artifactID)
	if !ok {
		return nil, notFoundError(artifactID)
	}
	if s.reg.Superseded(artifactID) {
		return nil, s.uploads.supersededError(artifactID)
	}
	if !doc.Machine.CanPerform(docstate.OpUpload) {
		return nil, &OpError{
			StatusCode: 409,
			Code:       apierrors.CodeInvalidTransition,
			Message:    fmt.Sprintf("Повторная загрузка недопустима в состоянии %s", doc.Machine.Current()),
		}
	}
	return s.runUploads(ctx, doc, subject)
}

// runUploads выполняет двойную загрузку и переводит состояние.
func (s *VerifyService) runUploads(ctx context.Context, doc *Document, subject string) (*DocumentStatus, *OpError) {
	artifact := doc.Artifact

	if err := doc.Machine.TransitionTo(docstate.StateUploading, subject); err != nil {
		return nil, transitionOpError(err)
	}

	// Объектное хранилище: download URL для профиля
	objRec, opErr := s.uploads.UploadToObjectStore(ctx, doc, nil)
	if opErr != nil && objRec == nil {
		// Попытка не состоялась (guard, журнал, вытеснение)
		return nil, opErr
	}

	// Контент-хранилище: недоступность деградирует в плейсхолдер
	var contentRec *model.UploadRecord
	if objRec.Usable() {
		var contentErr *OpError
		contentRec, contentErr = s.uploads.UploadToContentStore(ctx, doc)
		if contentErr != nil && contentRec == nil {
			return nil, contentErr
		}
	}

	// Перевод состояния: успех объектного стора достаточен для
	// ожидания верификации, плейсхолдер контент-стора не блокирует
	target := docstate.StateAwaiting
	if !objRec.Usable() {
		target = docstate.StateFailed
	}
	if err := doc.Machine.TransitionTo(target, subject); err != nil {
		return nil, transitionOpError(err)
	}

	// Частичное обновление профиля документными полями
	patch := &model.ProfilePatch{
		DocumentKind:      model.Ptr(artifact.Kind),
		DocumentHash:      model.Ptr(artifact.ContentHash),
		LocalDocumentPath: model.Ptr(artifact.LocalPath),
		ContentVerified:   model.Ptr(false),
	}
	if objRec.Usable() {
		patch.ObjectStoreURL = model.Ptr(objRec.Reference)
	}
	if contentRec != nil && contentRec.Reference != "" {
		patch.ContentStoreCID = model.Ptr(contentRec.Reference)
		patch.ContentStorePlaceholder = model.Ptr(contentRec.Placeholder)
	}
	if _, pErr := s.profiles.ApplyPatch(ctx, doc.Identity, patch); pErr != nil {
		s.logger.Error("Профиль не обновлён после загрузки",
			slog.String("artifact_id", artifact.ID),
			slog.String("error", pErr.Message),
		)
	}

	status, _ := s.reg.Snapshot(artifact.ID)
	return status, nil
}

// Verify скачивает удалённую копию из контент-хранилища и сравнивает
// её хэш с хэшем, зафиксированным при загрузке.
//
// Исходы:
//   - хэши совпали: запись verified, переход в verified (либо
//     самопереход для уже подтверждённых документов)
//   - хэши разошлись: запись hash_mismatch, переход в
//     verification_failed; это штатный исход, не ошибка сервиса
//   - копию не удалось получить: запись retrieval_failed, состояние
//     не меняется, возвращается RETRIEVAL_ERROR
//
// Каждый вызов создаёт новую запись; предыдущие сохраняются.
func (s *VerifyService) Verify(ctx context.Context, artifactID, subject string) (*model.VerificationRecord, *OpError) {
	doc, ok := s.reg.Get(artifactID)
	if !ok {
		return nil, notFoundError(artifactID)
	}
	if s.reg.Superseded(artifactID) {
		return nil, s.uploads.supersededError(artifactID)
	}
	if !doc.Machine.CanPerform(docstate.OpVerify) {
		return nil, &OpError{
			StatusCode: 409,
			Code:       apierrors.CodeInvalidTransition,
			Message:    fmt.Sprintf("Верификация недопустима в состоянии %s", doc.Machine.Current()),
		}
	}

	artifact := doc.Artifact

	// Плейсхолдер верифицировать нельзя: нужен настоящий CID
	cid := s.usableCID(doc)
	if cid == "" {
		rec := s.recordVerification(doc, model.VerificationUnavailable, artifact.ContentHash, "")
		middleware.VerificationsTotal.WithLabelValues(string(model.VerificationUnavailable)).Inc()
		return rec, &OpError{
			StatusCode: 502,
			Code:       apierrors.CodeRetrievalError,
			Message:    "Нет пригодного идентификатора содержимого: загрузка в контент-хранилище не подтверждена",
		}
	}

	// Всегда скачиваем заново
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	detach := s.reg.AttachCancel(artifactID, cancel)
	defer detach()

	resp, err := s.fetcher.Fetch(fetchCtx, cid)
	if err != nil {
		rec := s.recordVerification(doc, model.VerificationUnavailable, artifact.ContentHash, "")
		middleware.VerificationsTotal.WithLabelValues(string(model.VerificationUnavailable)).Inc()
		s.logger.Warn("Удалённая копия недоступна",
			slog.String("artifact_id", artifactID),
			slog.String("cid", cid),
			slog.String("error", err.Error()),
		)
		return rec, &OpError{
			StatusCode: 502,
			Code:       apierrors.CodeRetrievalError,
			Message:    "Удалённую копию не удалось получить",
		}
	}
	defer resp.Body.Close()

	remoteHash, err := hashing.DigestReader(resp.Body)
	if err != nil {
		rec := s.recordVerification(doc, model.VerificationUnavailable, artifact.ContentHash, "")
		middleware.VerificationsTotal.WithLabelValues(string(model.VerificationUnavailable)).Inc()
		return rec, &OpError{
			StatusCode: 502,
			Code:       apierrors.CodeRetrievalError,
			Message:    "Чтение удалённой копии прервано",
		}
	}

	// Сравнение с хэшем, зафиксированным при загрузке
	if remoteHash != artifact.ContentHash {
		rec := s.recordVerification(doc, model.VerificationMismatch, artifact.ContentHash, remoteHash)
		middleware.VerificationsTotal.WithLabelValues(string(model.VerificationMismatch)).Inc()
		if err := doc.Machine.TransitionTo(docstate.StateFailed, subject); err != nil {
			s.logger.Error("Переход в verification_failed не выполнен",
				slog.String("artifact_id", artifactID),
				slog.String("error", err.Error()),
			)
		}
		s.patchVerificationResult(ctx, doc, false)
		s.logger.Warn("Хэши не совпали: содержимое изменено",
			slog.String("artifact_id", artifactID),
			slog.String("local_hash", artifact.ContentHash),
			slog.String("remote_hash", remoteHash),
		)
		return rec, nil
	}

	rec := s.recordVerification(doc, model.VerificationOK, artifact.ContentHash, remoteHash)
	middleware.VerificationsTotal.WithLabelValues(string(model.VerificationOK)).Inc()

	// Подтверждённый в реестре документ остаётся таковым
	target := docstate.StateVerified
	if doc.Machine.Current() == docstate.StateLedgerVerified {
		target = docstate.StateLedgerVerified
	}
	if err := doc.Machine.TransitionTo(target, subject); err != nil {
		s.logger.Error("Переход в verified не выполнен",
			slog.String("artifact_id", artifactID),
			slog.String("error", err.Error()),
		)
	}
	s.patchVerificationResult(ctx, doc, true)

	s.logger.Info("Документ верифицирован",
		slog.String("artifact_id", artifactID),
		slog.String("sha256", artifact.ContentHash),
	)

	return rec, nil
}

// AttestOnLedger фиксирует подтверждённый хэш во внешнем реестре.
// Допустимо только из состояния verified. Недоступность реестра —
// мягкая деградация: состояние verified сохраняется.
func (s *VerifyService) AttestOnLedger(ctx context.Context, artifactID, subject string) (*model.VerificationRecord, *OpError) {
	doc, ok := s.reg.Get(artifactID)
	if !ok {
		return nil, notFoundError(artifactID)
	}
	if s.reg.Superseded(artifactID) {
		return nil, s.uploads.supersededError(artifactID)
	}
	if !doc.Machine.CanPerform(docstate.OpAttest) {
		return nil, &OpError{
			StatusCode: 409,
			Code:       apierrors.CodeInvalidTransition,
			Message:    fmt.Sprintf("Аттестация недопустима в состоянии %s", doc.Machine.Current()),
		}
	}
	if s.ledger == nil || !s.ledger.Enabled() {
		return nil, &OpError{
			StatusCode: 503,
			Code:       apierrors.CodeLedgerUnavailable,
			Message:    "Реестр аттестаций не настроен",
		}
	}

	artifact := doc.Artifact
	att, err := s.ledger.Attest(ctx, artifact.ContentHash, doc.Identity.Path())
	if err != nil {
		middleware.AttestationsTotal.WithLabelValues("failure").Inc()
		s.logger.Warn("Реестр недоступен, состояние verified сохранено",
			slog.String("artifact_id", artifactID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, ledger.ErrUnavailable) {
			return nil, &OpError{
				StatusCode: 503,
				Code:       apierrors.CodeLedgerUnavailable,
				Message:    "Реестр аттестаций временно недоступен",
			}
		}
		return nil, &OpError{
			StatusCode: 502,
			Code:       apierrors.CodeLedgerUnavailable,
			Message:    err.Error(),
		}
	}

	rec := &model.VerificationRecord{
		ID:                uuid.New().String(),
		ArtifactID:        artifactID,
		Method:            model.MethodLedgerAttestation,
		Status:            model.VerificationOK,
		LocalHash:         artifact.ContentHash,
		LedgerTxID:        att.TransactionID,
		LedgerExplorerURL: att.ExplorerURL,
		VerifiedAt:        time.Now().UTC(),
	}
	if _, err := s.jrn.AppendVerification(rec); err != nil {
		s.logger.Error("Аттестация не журналирована",
			slog.String("artifact_id", artifactID),
			slog.String("error", err.Error()),
		)
	}
	if !s.reg.AddVerification(artifactID, rec) {
		return nil, s.uploads.supersededError(artifactID)
	}

	if err := doc.Machine.TransitionTo(docstate.StateLedgerVerified, subject); err != nil {
		return nil, transitionOpError(err)
	}
	middleware.AttestationsTotal.WithLabelValues("success").Inc()

	now := time.Now().UTC()
	patch := &model.ProfilePatch{
		LedgerVerified: model.Ptr(true),
		LedgerTxID:     model.Ptr(att.TransactionID),
		LastVerifiedAt: &now,
	}
	if _, pErr := s.profiles.ApplyPatch(ctx, doc.Identity, patch); pErr != nil {
		s.logger.Error("Профиль не обновлён после аттестации",
			slog.String("artifact_id", artifactID),
			slog.String("error", pErr.Message),
		)
	}

	s.logger.Info("Хэш зафиксирован в реестре",
		slog.String("artifact_id", artifactID),
		slog.String("tx_id", att.TransactionID),
		slog.String("network", att.Network),
	)

	return rec, nil
}

// Status возвращает снимок документа.
func (s *VerifyService) Status(artifactID string) (*DocumentStatus, *OpError) {
	status, ok := s.reg.Snapshot(artifactID)
	if !ok {
		return nil, notFoundError(artifactID)
	}
	return status, nil
}

// JournalEntries возвращает журнальные записи артефакта.
func (s *VerifyService) JournalEntries(artifactID string) ([]*journal.Entry, *OpError) {
	if _, ok := s.reg.Get(artifactID); !ok {
		return nil, notFoundError(artifactID)
	}
	entries, err := s.jrn.ListByArtifact(artifactID)
	if err != nil {
		return nil, &OpError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения журнала",
		}
	}
	return entries, nil
}

// usableCID возвращает последний пригодный идентификатор содержимого.
// Плейсхолдеры и незавершённые попытки не учитываются.
func (s *VerifyService) usableCID(doc *Document) string {
	for i := len(doc.Uploads) - 1; i >= 0; i-- {
		rec := doc.Uploads[i]
		if rec.Store == model.StoreContent && rec.Usable() {
			return rec.Reference
		}
	}
	return ""
}

// recordVerification создаёт, журналирует и регистрирует запись
// о попытке верификации методом сравнения хэшей.
func (s *VerifyService) recordVerification(doc *Document, status model.VerificationStatus, localHash, remoteHash string) *model.VerificationRecord {
	rec := &model.VerificationRecord{
		ID:         uuid.New().String(),
		ArtifactID: doc.Artifact.ID,
		Method:     model.MethodHashCompare,
		Status:     status,
		LocalHash:  localHash,
		RemoteHash: remoteHash,
		VerifiedAt: time.Now().UTC(),
	}
	if _, err := s.jrn.AppendVerification(rec); err != nil {
		s.logger.Error("Верификация не журналирована",
			slog.String("artifact_id", doc.Artifact.ID),
			slog.String("error", err.Error()),
		)
	}
	if !s.reg.AddVerification(doc.Artifact.ID, rec) {
		s.logger.Info("Результат вытесненного артефакта отброшен",
			slog.String("artifact_id", doc.Artifact.ID),
		)
	}
	return rec
}

// patchVerificationResult отражает исход верификации в профиле.
func (s *VerifyService) patchVerificationResult(ctx context.Context, doc *Document, verified bool) {
	patch := &model.ProfilePatch{
		ContentVerified: model.Ptr(verified),
	}
	if verified {
		now := time.Now().UTC()
		patch.LastVerifiedAt = &now
	}
	if _, pErr := s.profiles.ApplyPatch(ctx, doc.Identity, patch); pErr != nil {
		s.logger.Error("Профиль не обновлён после верификации",
			slog.String("artifact_id", doc.Artifact.ID),
			slog.String("error", pErr.Message),
		)
	}
}

// notFoundError — артефакт отсутствует в реестре.
func notFoundError(artifactID string) *OpError {
	return &OpError{
		StatusCode: 404,
		Code:       apierrors.CodeNotFound,
		Message:    fmt.Sprintf("Документ %s не найден", artifactID),
	}
}

// transitionOpError преобразует ошибку конечного автомата в OpError.
func transitionOpError(err error) *OpError {
	var te *docstate.TransitionError
	if errors.As(err, &te) {
		return &OpError{
			StatusCode: 409,
			Code:       apierrors.CodeInvalidTransition,
			Message:    te.Message,
		}
	}
	return &OpError{
		StatusCode: 500,
		Code:       apierrors.CodeInternalError,
		Message:    err.Error(),
	}
}

// intakeOpError классифицирует исходы приёма документа.
func intakeOpError(err error) *OpError {
	switch {
	case errors.Is(err, intake.ErrPermissionDenied):
		return &OpError{StatusCode: 403, Code: apierrors.CodePermissionDenied, Message: err.Error()}
	case errors.Is(err, intake.ErrCancelled):
		return &OpError{StatusCode: 400, Code: apierrors.CodeUserCancelled, Message: err.Error()}
	case errors.Is(err, intake.ErrTooLarge):
		return &OpError{StatusCode: 413, Code: apierrors.CodeFileTooLarge, Message: err.Error()}
	case errors.Is(err, intake.ErrEmptyDocument), errors.Is(err, intake.ErrUnsupportedMedia):
		return &OpError{StatusCode: 422, Code: apierrors.CodeIOError, Message: err.Error()}
	default:
		return &OpError{StatusCode: 422, Code: apierrors.CodeIOError, Message: err.Error()}
	}
}
