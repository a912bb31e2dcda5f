package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
)

// Journal — файловый аудит-журнал.
// Потокобезопасен через мьютекс; записи атомарны
// (temp файл → fsync → rename).
type Journal struct {
	// dir — директория хранения записей (VM_JOURNAL_DIR)
	dir string
	// mu — мьютекс для потокобезопасности
	mu sync.Mutex
	// logger — логгер
	logger *slog.Logger
}

// New создаёт журнал. Проверяет и создаёт директорию,
// если она не существует. Возвращает ошибку при проблемах с FS.
func New(dir string, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию журнала %s: %w", dir, err)
	}

	// Проверяем доступность на запись через temp файл
	testFile := filepath.Join(dir, ".journal_write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o640); err != nil {
		return nil, fmt.Errorf("директория журнала %s недоступна для записи: %w", dir, err)
	}
	os.Remove(testFile)

	return &Journal{
		dir:    dir,
		logger: logger.With(slog.String("component", "journal")),
	}, nil
}

// BeginUpload создаёт pending-запись о начинающейся попытке загрузки.
// Вызывается до первой передачи байт в хранилище.
func (j *Journal) BeginUpload(rec *model.UploadRecord) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := &Entry{
		EntryID:    uuid.New().String(),
		Kind:       KindUpload,
		Status:     StatusPending,
		ArtifactID: rec.ArtifactID,
		Upload:     rec,
		StartedAt:  time.Now().UTC(),
	}

	if err := j.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("не удалось создать запись журнала: %w", err)
	}

	j.logger.Debug("Попытка загрузки журналирована",
		slog.String("entry_id", entry.EntryID),
		slog.String("artifact_id", rec.ArtifactID),
		slog.String("store", string(rec.Store)),
	)

	return entry, nil
}

// CompleteUpload фиксирует исход попытки загрузки.
// Запись должна находиться в статусе pending; итоговое состояние
// UploadRecord (succeeded или failed) сохраняется целиком.
func (j *Journal) CompleteUpload(entryID string, rec *model.UploadRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry, err := j.readEntry(entryID)
	if err != nil {
		return fmt.Errorf("не удалось прочитать запись журнала %s: %w", entryID, err)
	}

	if entry.Status != StatusPending {
		return fmt.Errorf("запись журнала %s имеет статус %s, ожидается %s",
			entryID, entry.Status, StatusPending)
	}

	now := time.Now().UTC()
	entry.Status = StatusCommitted
	entry.Upload = rec
	entry.CompletedAt = &now

	if err := j.writeEntry(entry); err != nil {
		return fmt.Errorf("не удалось обновить запись журнала %s: %w", entryID, err)
	}

	j.logger.Debug("Исход загрузки зафиксирован",
		slog.String("entry_id", entryID),
		slog.String("artifact_id", rec.ArtifactID),
		slog.String("state", string(rec.State)),
		slog.Duration("duration", now.Sub(entry.StartedAt)),
	)

	return nil
}

// AppendVerification фиксирует результат верификации.
// Верификация журналируется постфактум, запись сразу committed.
// Предыдущие записи не мутируются: каждая попытка — новая запись.
func (j *Journal) AppendVerification(rec *model.VerificationRecord) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now().UTC()
	entry := &Entry{
		EntryID:      uuid.New().String(),
		Kind:         KindVerification,
		Status:       StatusCommitted,
		ArtifactID:   rec.ArtifactID,
		Verification: rec,
		StartedAt:    now,
		CompletedAt:  &now,
	}

	if err := j.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("не удалось записать результат верификации: %w", err)
	}

	j.logger.Debug("Результат верификации журналирован",
		slog.String("entry_id", entry.EntryID),
		slog.String("artifact_id", rec.ArtifactID),
		slog.String("status", string(rec.Status)),
	)

	return entry, nil
}

// RecoverInterrupted находит pending-записи о загрузках, прерванных
// рестартом, переводит их UploadRecord в failed(cancelled) и помечает
// записи rolled_back. Вызывается при старте сервера: ни одна попытка
// не должна остаться в in_progress навсегда.
func (j *Journal) RecoverInterrupted() ([]*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(j.dir, "*.rec.json"))
	if err != nil {
		return nil, fmt.Errorf("не удалось сканировать директорию журнала: %w", err)
	}

	var recovered []*Entry
	for _, path := range paths {
		entryID := strings.TrimSuffix(filepath.Base(path), ".rec.json")
		entry, err := j.readEntry(entryID)
		if err != nil {
			j.logger.Warn("Не удалось прочитать запись журнала при восстановлении",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}

		if entry.Status != StatusPending {
			continue
		}

		now := time.Now().UTC()
		entry.Status = StatusRolledBack
		entry.CompletedAt = &now
		if entry.Upload != nil {
			entry.Upload.State = model.UploadFailed
			entry.Upload.ErrorKind = model.UploadErrCancelled
			entry.Upload.ErrorMessage = "загрузка прервана рестартом сервиса"
			entry.Upload.CompletedAt = &now
		}

		if err := j.writeEntry(entry); err != nil {
			j.logger.Warn("Не удалось откатить прерванную запись",
				slog.String("entry_id", entry.EntryID),
				slog.String("error", err.Error()),
			)
			continue
		}

		recovered = append(recovered, entry)
		j.logger.Warn("Прерванная загрузка переведена в failed",
			slog.String("entry_id", entry.EntryID),
			slog.String("artifact_id", entry.ArtifactID),
			slog.Time("started_at", entry.StartedAt),
		)
	}

	return recovered, nil
}

// ListByArtifact возвращает все записи журнала по артефакту,
// отсортированные по времени создания. Используется аудит-эндпоинтом.
func (j *Journal) ListByArtifact(artifactID string) ([]*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(j.dir, "*.rec.json"))
	if err != nil {
		return nil, fmt.Errorf("не удалось сканировать директорию журнала: %w", err)
	}

	var result []*Entry
	for _, path := range paths {
		entryID := strings.TrimSuffix(filepath.Base(path), ".rec.json")
		entry, err := j.readEntry(entryID)
		if err != nil {
			continue
		}
		if entry.ArtifactID == artifactID {
			result = append(result, entry)
		}
	}

	// Сортировка по времени создания (вставками: записей на артефакт немного)
	for i := 1; i < len(result); i++ {
		for k := i; k > 0 && result[k].StartedAt.Before(result[k-1].StartedAt); k-- {
			result[k], result[k-1] = result[k-1], result[k]
		}
	}

	return result, nil
}

// CleanFinished удаляет завершённые (committed/rolled_back) записи
// старше retention. Возвращает количество удалённых записей.
func (j *Journal) CleanFinished(retention time.Duration) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(j.dir, "*.rec.json"))
	if err != nil {
		return 0, fmt.Errorf("не удалось сканировать директорию журнала: %w", err)
	}

	cutoff := time.Now().UTC().Add(-retention)
	cleaned := 0
	for _, path := range paths {
		entryID := strings.TrimSuffix(filepath.Base(path), ".rec.json")
		entry, err := j.readEntry(entryID)
		if err != nil {
			continue
		}

		if entry.Status == StatusPending {
			continue
		}
		if entry.CompletedAt == nil || entry.CompletedAt.After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			j.logger.Warn("Не удалось удалить завершённую запись журнала",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		cleaned++
	}

	if cleaned > 0 {
		j.logger.Info("Очистка журнала завершена",
			slog.Int("cleaned", cleaned),
		)
	}

	return cleaned, nil
}

// writeEntry атомарно записывает запись журнала на диск.
// Паттерн: temp файл → fsync → atomic rename.
func (j *Journal) writeEntry(entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}

	targetPath := filepath.Join(j.dir, entryFileName(entry.EntryID))
	tmpPath := targetPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// readEntry читает запись журнала из файла.
func (j *Journal) readEntry(entryID string) (*Entry, error) {
	path := filepath.Join(j.dir, entryFileName(entryID))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("ошибка десериализации: %w", err)
	}

	return &entry, nil
}

// Dir возвращает путь к директории журнала.
func (j *Journal) Dir() string {
	return j.dir
}
