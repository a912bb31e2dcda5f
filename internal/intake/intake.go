// Пакет intake — приём документа на верификацию.
// Нормализует документ из любого источника (камера, галерея, файл)
// в локальную копию во временном каталоге. Размер и MIME-тип
// наблюдаются по фактическим байтам; заявленные источником значения
// игнорируются. Сетевых операций пакет не выполняет.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
)

// Типизированные исходы приёма документа.
var (
	// ErrPermissionDenied — источник недоступен из-за отсутствия прав
	ErrPermissionDenied = errors.New("доступ к источнику документа запрещён")
	// ErrCancelled — пользователь прервал выбор/передачу документа
	ErrCancelled = errors.New("приём документа отменён")
	// ErrEmptyDocument — источник вернул ноль байт
	ErrEmptyDocument = errors.New("документ пуст")
	// ErrTooLarge — документ превышает допустимый размер
	ErrTooLarge = errors.New("документ превышает допустимый размер")
	// ErrUnsupportedMedia — тип содержимого не подходит для источника
	ErrUnsupportedMedia = errors.New("неподдерживаемый тип содержимого")
)

// Source — источник документа.
type Source struct {
	// Kind — вид источника (camera, gallery, file)
	Kind model.ArtifactSource
	// DocumentKind — вид документа (land_record, id_proof и т.п.)
	DocumentKind string
	// Reader — поток байтов документа
	Reader io.Reader
}

// Intake — приём документов во временный каталог.
type Intake struct {
	tmpDir  string
	maxSize int64
}

// New создаёт Intake. Создаёт временный каталог, если его нет.
func New(tmpDir string, maxSize int64) (*Intake, error) {
	if err := os.MkdirAll(tmpDir, 0o750); err != nil {
		return nil, fmt.Errorf("создание временного каталога %s: %w", tmpDir, err)
	}
	return &Intake{tmpDir: tmpDir, maxSize: maxSize}, nil
}

// Capture принимает документ из источника и создаёт артефакт.
//
// Шаги:
//  1. Копирование потока в temp файл с контролем размера
//  2. fsync
//  3. Определение MIME-типа по первым байтам содержимого
//  4. Проверка типа против вида источника (камера/галерея — только изображения)
//  5. Атомарный rename в итоговое имя {uuid}{ext}
//
// Хэш содержимого на этом шаге НЕ вычисляется: его записывает
// координатор перед началом загрузки.
func (in *Intake) Capture(ctx context.Context, src Source) (*model.Artifact, error) {
	if src.Reader == nil {
		return nil, ErrEmptyDocument
	}
	if src.DocumentKind == "" {
		return nil, fmt.Errorf("не указан вид документа")
	}

	id := uuid.New().String()
	tmpPath := filepath.Join(in.tmpDir, id+".tmp")

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("создание временного файла: %w", err)
	}

	// Копируем с запасом в один байт сверх лимита, чтобы отличить
	// ровно maxSize от превышения
	size, err := io.Copy(f, io.LimitReader(src.Reader, in.maxSize+1))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return nil, fmt.Errorf("запись документа: %w", err)
	}
	if size == 0 {
		f.Close()
		os.Remove(tmpPath)
		return nil, ErrEmptyDocument
	}
	if size > in.maxSize {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: лимит %d байт", ErrTooLarge, in.maxSize)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("fsync временного файла: %w", err)
	}

	// Определяем MIME-тип по содержимому
	head := make([]byte, 512)
	n, err := f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("чтение заголовка документа: %w", err)
	}
	mediaType := http.DetectContentType(head[:n])

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("закрытие временного файла: %w", err)
	}

	if err := checkMediaType(src.Kind, mediaType); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	artifact := &model.Artifact{
		ID:         id,
		Kind:       src.DocumentKind,
		MediaType:  mediaType,
		SizeBytes:  size,
		Source:     src.Kind,
		CapturedAt: time.Now().UTC(),
	}

	finalPath := filepath.Join(in.tmpDir, id+artifact.Ext())
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("атомарное переименование: %w", err)
	}
	artifact.LocalPath = finalPath

	return artifact, nil
}

// Discard удаляет локальную копию артефакта.
// Возвращает nil, если копии уже нет.
func (in *Intake) Discard(artifact *model.Artifact) error {
	if artifact == nil || artifact.LocalPath == "" {
		return nil
	}
	err := os.Remove(artifact.LocalPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("удаление локальной копии %s: %w", artifact.LocalPath, err)
	}
	return nil
}

// Open открывает локальную копию артефакта для чтения.
// Вызывающий код обязан закрыть файл.
func (in *Intake) Open(artifact *model.Artifact) (*os.File, error) {
	f, err := os.Open(artifact.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("локальная копия артефакта %s не найдена", artifact.ID)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, artifact.LocalPath)
		}
		return nil, fmt.Errorf("открытие локальной копии: %w", err)
	}
	return f, nil
}

// TmpDir возвращает путь временного каталога.
func (in *Intake) TmpDir() string {
	return in.tmpDir
}

// checkMediaType проверяет соответствие MIME-типа виду источника.
// Камера и галерея могут дать только изображение; для file-источника
// фиксируется фактический тип без ограничений.
func checkMediaType(kind model.ArtifactSource, mediaType string) error {
	switch kind {
	case model.SourceCamera, model.SourceGallery:
		switch mediaType {
		case "image/jpeg", "image/png", "image/webp":
			return nil
		default:
			return fmt.Errorf("%w: %s из источника %s", ErrUnsupportedMedia, mediaType, kind)
		}
	case model.SourceFile:
		return nil
	default:
		return fmt.Errorf("недопустимый источник документа: %q", kind)
	}
}
