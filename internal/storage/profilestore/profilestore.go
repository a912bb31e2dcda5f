// Пакет profilestore — локальная персистентная копия профилей пользователей.
// Каждый профиль — отдельный файл {userType}_{phone}.profile.json в
// VM_PROFILE_DIR; копия переживает рестарты и служит источником для
// построения in-memory индекса при старте. Все операции записи
// выполняются атомарно: temp → fsync → rename.
package profilestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
)

// ProfileSuffix — суффикс файла профиля.
const ProfileSuffix = ".profile.json"

// maxProfileFileSize — максимальный допустимый размер файла профиля (64 КБ).
// Ограничение гарантирует атомарность записи.
const maxProfileFileSize = 64 * 1024

// Store — файловое хранилище профилей.
type Store struct {
	// dir — директория хранения профилей (VM_PROFILE_DIR)
	dir string
}

// New создаёт хранилище профилей. Создаёт директорию, если её нет.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию профилей %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// FilePath возвращает путь файла профиля для данной идентичности.
func (s *Store) FilePath(id model.Identity) string {
	sn := id.Sanitized()
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s%s", sn.UserType, sn.Phone, ProfileSuffix))
}

// Write атомарно записывает профиль на диск.
// Возвращает ошибку, если сериализованный профиль превышает 64 КБ.
func (s *Store) Write(profile *model.UserDocumentProfile) error {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации профиля: %w", err)
	}

	// Проверка размера для гарантии атомарности
	if len(data) > maxProfileFileSize {
		return fmt.Errorf("размер профиля (%d байт) превышает максимум (%d байт)",
			len(data), maxProfileFileSize)
	}

	path := s.FilePath(profile.Identity)
	tmpPath := path + ".tmp"

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

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Read читает профиль по идентичности.
// Возвращает os.ErrNotExist, если копии профиля нет.
func (s *Store) Read(id model.Identity) (*model.UserDocumentProfile, error) {
	data, err := os.ReadFile(s.FilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ошибка чтения профиля %s: %w", id.Path(), err)
	}

	var profile model.UserDocumentProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("ошибка десериализации профиля %s: %w", id.Path(), err)
	}

	return &profile, nil
}

// Delete удаляет локальную копию профиля.
// Возвращает nil, если копии уже нет.
func (s *Store) Delete(id model.Identity) error {
	err := os.Remove(s.FilePath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления профиля %s: %w", id.Path(), err)
	}
	return nil
}

// ScanDir сканирует директорию и возвращает все профили.
// Не рекурсивный. Используется при построении in-memory индекса
// при старте; невалидные файлы пропускаются.
func (s *Store) ScanDir() ([]*model.UserDocumentProfile, error) {
	pattern := filepath.Join(s.dir, "*"+ProfileSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", s.dir, err)
	}

	var result []*model.UserDocumentProfile
	for _, path := range matches {
		if strings.HasSuffix(path, ".tmp") {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var profile model.UserDocumentProfile
		if err := json.Unmarshal(data, &profile); err != nil {
			// Пропускаем невалидные файлы
			continue
		}
		result = append(result, &profile)
	}

	return result, nil
}

// Dir возвращает путь к директории профилей.
func (s *Store) Dir() string {
	return s.dir
}
