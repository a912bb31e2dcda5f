package intake

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
)

// jpegHeader — минимальная JPEG-сигнатура для http.DetectContentType.
var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func newTestIntake(t *testing.T, maxSize int64) *Intake {
	t.Helper()
	in, err := New(t.TempDir(), maxSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return in
}

func TestCaptureFileSource(t *testing.T) {
	in := newTestIntake(t, 1<<20)
	content := "agri-doc-sample"

	artifact, err := in.Capture(context.Background(), Source{
		Kind:         model.SourceFile,
		DocumentKind: "land_record",
		Reader:       strings.NewReader(content),
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	// Размер наблюдается по фактическим байтам
	if artifact.SizeBytes != int64(len(content)) {
		t.Errorf("SizeBytes = %d, ожидалось %d", artifact.SizeBytes, len(content))
	}
	if artifact.Kind != "land_record" {
		t.Errorf("Kind = %q", artifact.Kind)
	}
	if artifact.ContentHash != "" {
		t.Errorf("хэш не должен вычисляться при приёме: %q", artifact.ContentHash)
	}

	// Локальная копия существует и содержит исходные байты
	data, err := os.ReadFile(artifact.LocalPath)
	if err != nil {
		t.Fatalf("чтение локальной копии: %v", err)
	}
	if string(data) != content {
		t.Errorf("содержимое копии = %q, ожидалось %q", data, content)
	}
}

func TestCaptureCameraRequiresImage(t *testing.T) {
	in := newTestIntake(t, 1<<20)

	// Текст с камеры — отклоняется
	_, err := in.Capture(context.Background(), Source{
		Kind:         model.SourceCamera,
		DocumentKind: "id_proof",
		Reader:       strings.NewReader("definitely not an image"),
	})
	if !errors.Is(err, ErrUnsupportedMedia) {
		t.Errorf("ожидался ErrUnsupportedMedia, получено %v", err)
	}

	// JPEG с камеры — принимается
	artifact, err := in.Capture(context.Background(), Source{
		Kind:         model.SourceCamera,
		DocumentKind: "id_proof",
		Reader:       bytes.NewReader(jpegHeader),
	})
	if err != nil {
		t.Fatalf("Capture(jpeg): %v", err)
	}
	if artifact.MediaType != "image/jpeg" {
		t.Errorf("MediaType = %q, ожидалось image/jpeg", artifact.MediaType)
	}
	if !strings.HasSuffix(artifact.LocalPath, ".jpg") {
		t.Errorf("расширение копии: %s", artifact.LocalPath)
	}
}

func TestCaptureEmpty(t *testing.T) {
	in := newTestIntake(t, 1<<20)
	_, err := in.Capture(context.Background(), Source{
		Kind:         model.SourceFile,
		DocumentKind: "land_record",
		Reader:       strings.NewReader(""),
	})
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("ожидался ErrEmptyDocument, получено %v", err)
	}

	_, err = in.Capture(context.Background(), Source{
		Kind:         model.SourceFile,
		DocumentKind: "land_record",
	})
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("nil reader: ожидался ErrEmptyDocument, получено %v", err)
	}
}

func TestCaptureTooLarge(t *testing.T) {
	in := newTestIntake(t, 10)
	_, err := in.Capture(context.Background(), Source{
		Kind:         model.SourceFile,
		DocumentKind: "land_record",
		Reader:       strings.NewReader("eleven bytes"),
	})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("ожидался ErrTooLarge, получено %v", err)
	}

	// Временный каталог не должен содержать мусора после отказа
	entries, readErr := os.ReadDir(in.TmpDir())
	if readErr != nil {
		t.Fatalf("чтение каталога: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("временный каталог не очищен: %d файлов", len(entries))
	}
}

func TestCaptureExactLimit(t *testing.T) {
	in := newTestIntake(t, 10)
	artifact, err := in.Capture(context.Background(), Source{
		Kind:         model.SourceFile,
		DocumentKind: "land_record",
		Reader:       strings.NewReader("exactly 10"),
	})
	if err != nil {
		t.Fatalf("документ ровно в лимит отклонён: %v", err)
	}
	if artifact.SizeBytes != 10 {
		t.Errorf("SizeBytes = %d", artifact.SizeBytes)
	}
}

func TestDiscard(t *testing.T) {
	in := newTestIntake(t, 1<<20)
	artifact, err := in.Capture(context.Background(), Source{
		Kind:         model.SourceFile,
		DocumentKind: "land_record",
		Reader:       strings.NewReader("hello-doc"),
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if err := in.Discard(artifact); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, err := os.Stat(artifact.LocalPath); !os.IsNotExist(err) {
		t.Error("локальная копия не удалена")
	}

	// Повторный Discard — без ошибки
	if err := in.Discard(artifact); err != nil {
		t.Errorf("повторный Discard: %v", err)
	}
}

func TestOpenMissing(t *testing.T) {
	in := newTestIntake(t, 1<<20)
	_, err := in.Open(&model.Artifact{ID: "gone", LocalPath: in.TmpDir() + "/gone.bin"})
	if err == nil {
		t.Error("ожидалась ошибка для отсутствующей копии")
	}
}
