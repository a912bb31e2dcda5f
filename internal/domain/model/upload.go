package model

import "time"

// StoreKind — вид внешнего хранилища, в которое загружается документ.
type StoreKind string

const (
	// StoreObject — изменяемое объектное хранилище (выдаёт download URL)
	StoreObject StoreKind = "object_store"
	// StoreContent — контент-адресуемое хранилище (выдаёт CID)
	StoreContent StoreKind = "content_store"
)

// UploadState — состояние попытки загрузки.
type UploadState string

const (
	// UploadPending — попытка создана, передача не начата
	UploadPending UploadState = "pending"
	// UploadInProgress — передача идёт
	UploadInProgress UploadState = "in_progress"
	// UploadSucceeded — хранилище подтвердило приём
	UploadSucceeded UploadState = "succeeded"
	// UploadFailed — попытка завершилась ошибкой
	UploadFailed UploadState = "failed"
)

// UploadErrorKind — классификация ошибки загрузки.
type UploadErrorKind string

const (
	// UploadErrNetwork — сетевая ошибка или ошибка хранилища
	UploadErrNetwork UploadErrorKind = "network"
	// UploadErrCancelled — операция отменена (контекст)
	UploadErrCancelled UploadErrorKind = "cancelled"
	// UploadErrTimeout — превышен таймаут
	UploadErrTimeout UploadErrorKind = "timeout"
)

// UploadRecord — запись об одной попытке загрузки артефакта в одно хранилище.
// Повторная попытка всегда создаёт новую запись; неудачные записи сохраняются
// для аудита. На пару (артефакт, хранилище) одновременно допускается не более
// одной записи в состоянии in_progress.
type UploadRecord struct {
	// ID — идентификатор попытки (UUID v4)
	ID string `json:"id"`

	// ArtifactID — артефакт, который загружается
	ArtifactID string `json:"artifact_id"`

	// Store — целевое хранилище
	Store StoreKind `json:"store"`

	// State — текущее состояние попытки
	State UploadState `json:"state"`

	// Progress — доля переданных байт [0..1], монотонно неубывающая
	Progress float64 `json:"progress"`

	// Reference — ссылка, выданная хранилищем: download URL для
	// объектного стора, CID для контент-стора. Заполняется при succeeded
	// либо плейсхолдером при деградации (см. Placeholder).
	Reference string `json:"reference,omitempty"`

	// Placeholder — признак того, что Reference — локальный плейсхолдер,
	// а не подтверждённая хранилищем ссылка. Плейсхолдер никогда не
	// участвует в верификации.
	Placeholder bool `json:"placeholder,omitempty"`

	// ErrorKind — классификация ошибки (только при failed)
	ErrorKind UploadErrorKind `json:"error_kind,omitempty"`

	// ErrorMessage — описание ошибки (только при failed)
	ErrorMessage string `json:"error_message,omitempty"`

	// StartedAt — момент создания записи (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — момент перехода в терминальное состояние.
	// nil, пока попытка не завершена.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal сообщает, находится ли запись в терминальном состоянии.
func (r *UploadRecord) Terminal() bool {
	return r.State == UploadSucceeded || r.State == UploadFailed
}

// Usable сообщает, пригодна ли ссылка записи для дальнейшей работы:
// попытка успешна и ссылка не является плейсхолдером.
func (r *UploadRecord) Usable() bool {
	return r.State == UploadSucceeded && !r.Placeholder && r.Reference != ""
}
