// Пакет journal — файловый аудит-журнал попыток загрузки и верификации.
// Каждая запись — отдельный файл {entry_id}.rec.json в VM_JOURNAL_DIR.
// Запись о загрузке создаётся со статусом pending до начала передачи
// и коммитится по её завершении; при рестарте pending записи
// переводятся в failed(cancelled), чтобы ни одна попытка не осталась
// in_progress навсегда. Завершённые записи сохраняются для аудита.
package journal

import (
	"time"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
)

// EntryKind — вид журналируемого события.
type EntryKind string

const (
	// KindUpload — попытка загрузки в хранилище
	KindUpload EntryKind = "upload"
	// KindVerification — попытка верификации
	KindVerification EntryKind = "verification"
)

// EntryStatus — статус записи журнала.
type EntryStatus string

const (
	// StatusPending — операция начата, исход неизвестен
	StatusPending EntryStatus = "pending"
	// StatusCommitted — исход операции зафиксирован
	StatusCommitted EntryStatus = "committed"
	// StatusRolledBack — операция прервана рестартом или отменой
	StatusRolledBack EntryStatus = "rolled_back"
)

// Entry — запись журнала. Хранится как JSON-файл {entry_id}.rec.json.
type Entry struct {
	// EntryID — уникальный идентификатор записи (UUID v4)
	EntryID string `json:"entry_id"`

	// Kind — вид события
	Kind EntryKind `json:"kind"`

	// Status — текущий статус записи
	Status EntryStatus `json:"status"`

	// ArtifactID — артефакт, к которому относится событие
	ArtifactID string `json:"artifact_id"`

	// Upload — запись о попытке загрузки (только для kind=upload)
	Upload *model.UploadRecord `json:"upload,omitempty"`

	// Verification — запись о попытке верификации (только для kind=verification)
	Verification *model.VerificationRecord `json:"verification,omitempty"`

	// StartedAt — время создания записи (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время фиксации исхода (UTC).
	// nil для pending записей.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// entryFileName возвращает имя файла журнала для данной записи.
func entryFileName(entryID string) string {
	return entryID + ".rec.json"
}
