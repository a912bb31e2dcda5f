package hashing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Эталонные дайджесты вычислены внешней утилитой sha256sum.
const (
	helloDocHash = "d1c627ff5ecb73c384b004462aa74f8940918a1b39a704e35e46c2526c010640"
	emptyHash    = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestDigestBytes(t *testing.T) {
	if got := DigestBytes([]byte("hello-doc")); got != helloDocHash {
		t.Errorf("DigestBytes(hello-doc) = %s, ожидалось %s", got, helloDocHash)
	}
	if got := DigestBytes(nil); got != emptyHash {
		t.Errorf("DigestBytes(nil) = %s, ожидалось %s", got, emptyHash)
	}
}

func TestDigestReader(t *testing.T) {
	got, err := DigestReader(strings.NewReader("hello-doc"))
	if err != nil {
		t.Fatalf("DigestReader: %v", err)
	}
	if got != helloDocHash {
		t.Errorf("DigestReader = %s, ожидалось %s", got, helloDocHash)
	}
}

func TestDigestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.bin")
	if err := os.WriteFile(path, []byte("hello-doc"), 0o644); err != nil {
		t.Fatalf("подготовка файла: %v", err)
	}

	got, err := DigestFile(path)
	if err != nil {
		t.Fatalf("DigestFile: %v", err)
	}
	if got != helloDocHash {
		t.Errorf("DigestFile = %s, ожидалось %s", got, helloDocHash)
	}
}

// Детерминизм: повторное хэширование того же содержимого даёт тот же дайджест.
func TestDigestDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.bin")
	if err := os.WriteFile(path, []byte("agri-doc-sample"), 0o644); err != nil {
		t.Fatalf("подготовка файла: %v", err)
	}

	first, err := DigestFile(path)
	if err != nil {
		t.Fatalf("первый дайджест: %v", err)
	}
	second, err := DigestFile(path)
	if err != nil {
		t.Fatalf("второй дайджест: %v", err)
	}
	if first != second {
		t.Errorf("дайджесты различаются: %s != %s", first, second)
	}
	if first != "918215ee904474668c4b6237caaac00f695f686a4150f44d1773590531a68689" {
		t.Errorf("неожиданный дайджест: %s", first)
	}
}

func TestDigestFileMissing(t *testing.T) {
	if _, err := DigestFile(filepath.Join(t.TempDir(), "nope.bin")); err == nil {
		t.Error("ожидалась ошибка для отсутствующего файла")
	}
}
