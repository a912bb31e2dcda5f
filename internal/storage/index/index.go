// Пакет index — потокобезопасный in-memory индекс профилей пользователей.
// Источник истины — файлы profilestore; индекс строится из них при старте
// и обновляется при каждой мутации профиля. Не персистентен.
package index

import (
	"sort"
	"sync"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/profilestore"
)

// Index — in-memory индекс профилей, ключ — путь идентичности
// (users/{userType}/{state}/{district}/{phone}).
type Index struct {
	mu       sync.RWMutex
	profiles map[string]*model.UserDocumentProfile
	ready    bool
}

// New создаёт пустой индекс.
func New() *Index {
	return &Index{
		profiles: make(map[string]*model.UserDocumentProfile),
	}
}

// BuildFromStore наполняет индекс из файлового хранилища профилей.
// Вызывается при старте сервера до начала обработки запросов.
func (idx *Index) BuildFromStore(store *profilestore.Store) error {
	profiles, err := store.ScanDir()
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.profiles = make(map[string]*model.UserDocumentProfile, len(profiles))
	for _, p := range profiles {
		idx.profiles[p.Identity.Path()] = p
	}
	idx.ready = true

	return nil
}

// IsReady сообщает, построен ли индекс.
// Используется readiness-проверкой.
func (idx *Index) IsReady() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ready
}

// Get возвращает копию профиля по идентичности.
func (idx *Index) Get(id model.Identity) (*model.UserDocumentProfile, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	p, ok := idx.profiles[id.Path()]
	if !ok {
		return nil, false
	}
	return copyProfile(p), true
}

// Put добавляет или заменяет профиль в индексе.
// Сохраняется копия: дальнейшие мутации аргумента индекс не затрагивают.
func (idx *Index) Put(profile *model.UserDocumentProfile) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.profiles[profile.Identity.Path()] = copyProfile(profile)
}

// Remove удаляет профиль из индекса.
func (idx *Index) Remove(id model.Identity) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.profiles, id.Path())
}

// List возвращает срез профилей (копии), отсортированных по пути
// идентичности, с пагинацией.
func (idx *Index) List(offset, limit int) []*model.UserDocumentProfile {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	keys := make([]string, 0, len(idx.profiles))
	for k := range idx.profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if offset >= len(keys) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(keys) {
		end = len(keys)
	}

	result := make([]*model.UserDocumentProfile, 0, end-offset)
	for _, k := range keys[offset:end] {
		result = append(result, copyProfile(idx.profiles[k]))
	}
	return result
}

// Count возвращает общее количество профилей в индексе.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.profiles)
}

// CountVerified возвращает количество профилей с подтверждённым документом.
// Используется бизнес-метриками.
func (idx *Index) CountVerified() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for _, p := range idx.profiles {
		if p.ContentVerified {
			n++
		}
	}
	return n
}

// copyProfile возвращает глубокую копию профиля
// (срез товаров копируется отдельно).
func copyProfile(p *model.UserDocumentProfile) *model.UserDocumentProfile {
	cp := *p
	if p.Products != nil {
		cp.Products = make([]model.Product, len(p.Products))
		copy(cp.Products, p.Products)
	}
	if p.LastVerifiedAt != nil {
		t := *p.LastVerifiedAt
		cp.LastVerifiedAt = &t
	}
	return &cp
}
