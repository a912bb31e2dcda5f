package model

import (
	"fmt"
	"time"
)

// ArtifactSource — источник, из которого получен документ.
type ArtifactSource string

const (
	// SourceCamera — снимок с камеры
	SourceCamera ArtifactSource = "camera"
	// SourceGallery — изображение из галереи
	SourceGallery ArtifactSource = "gallery"
	// SourceFile — произвольный файл (PDF и т.п.)
	SourceFile ArtifactSource = "file"
)

// Artifact — локальная копия документа, принятого на верификацию.
// Размер и MIME-тип наблюдаются по фактическим байтам, а не берутся
// из заявленных источником значений. ContentHash записывается ровно
// один раз на экземпляр и далее не пересчитывается.
type Artifact struct {
	// ID — уникальный идентификатор артефакта (UUID v4)
	ID string `json:"id"`

	// Kind — вид документа (land_record, id_proof и т.п.)
	Kind string `json:"kind"`

	// LocalPath — путь к локальной копии во временном каталоге
	LocalPath string `json:"local_path"`

	// MediaType — MIME-тип, определённый по содержимому
	MediaType string `json:"media_type"`

	// SizeBytes — фактический размер в байтах
	SizeBytes int64 `json:"size_bytes"`

	// Source — источник документа
	Source ArtifactSource `json:"source"`

	// ContentHash — SHA-256 содержимого (hex). Пустая строка —
	// хэш ещё не вычислен.
	ContentHash string `json:"content_hash,omitempty"`

	// CapturedAt — момент приёма документа (UTC)
	CapturedAt time.Time `json:"captured_at"`
}

// SetContentHash записывает хэш содержимого. Повторная запись запрещена:
// хэш вычисляется один раз на экземпляр артефакта.
func (a *Artifact) SetContentHash(hash string) error {
	if a.ContentHash != "" {
		return fmt.Errorf("хэш артефакта %s уже записан", a.ID)
	}
	if hash == "" {
		return fmt.Errorf("пустой хэш для артефакта %s", a.ID)
	}
	a.ContentHash = hash
	return nil
}

// Ext возвращает расширение файла по MIME-типу (с точкой).
// Для неизвестных типов — ".bin".
func (a *Artifact) Ext() string {
	switch a.MediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
