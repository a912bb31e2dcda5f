// Пакет service — бизнес-логика Verification Module.
// registry.go — in-memory реестр документов, находящихся в работе:
// артефакт, конечный автомат состояния, записи загрузок и верификаций.
// Замена документа пользователем отменяет in-flight работу предыдущего
// артефакта; поздние результаты вытесненного артефакта отбрасываются.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/docstate"
	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
)

// Document — документ в работе: артефакт и всё, что с ним произошло.
type Document struct {
	// Artifact — принятый артефакт
	Artifact *model.Artifact
	// Identity — владелец документа
	Identity model.Identity
	// Machine — конечный автомат состояния верификации
	Machine *docstate.StateMachine
	// Uploads — записи попыток загрузки (в порядке создания)
	Uploads []*model.UploadRecord
	// Verifications — записи попыток верификации (в порядке создания)
	Verifications []*model.VerificationRecord
	// superseded — артефакт вытеснен более новым документом владельца
	superseded bool
	// cancels — отмены in-flight операций артефакта, ключ — номер привязки
	cancels map[int]context.CancelFunc
	// cancelSeq — счётчик привязок отмен
	cancelSeq int
	// lastActivity — момент последнего изменения документа
	lastActivity time.Time
}

// DocumentStatus — снимок состояния документа для API-ответов.
type DocumentStatus struct {
	Artifact      model.Artifact              `json:"artifact"`
	State         docstate.DocState           `json:"state"`
	Uploads       []model.UploadRecord        `json:"uploads"`
	Verifications []model.VerificationRecord  `json:"verifications"`
	History       []docstate.TransitionRecord `json:"history"`
	Superseded    bool                        `json:"superseded"`
}

// Registry — потокобезопасный реестр документов в работе.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]*Document // ключ — artifact ID
	// latest — последний артефакт владельца, ключ — путь идентичности
	latest map[string]string
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		docs:   make(map[string]*Document),
		latest: make(map[string]string),
	}
}

// Register добавляет принятый артефакт в реестр.
// Предыдущий артефакт того же владельца вытесняется: его in-flight
// операции отменяются, дальнейшие результаты отбрасываются.
func (r *Registry) Register(artifact *model.Artifact, id model.Identity) *Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := id.Path()
	if prevID, ok := r.latest[key]; ok {
		if prev, ok := r.docs[prevID]; ok {
			prev.superseded = true
			prev.lastActivity = time.Now()
			for _, cancel := range prev.cancels {
				cancel()
			}
			prev.cancels = nil
		}
	}

	doc := &Document{
		Artifact:     artifact,
		Identity:     id,
		Machine:      docstate.NewStateMachine(),
		cancels:      make(map[int]context.CancelFunc),
		lastActivity: time.Now(),
	}
	r.docs[artifact.ID] = doc
	r.latest[key] = artifact.ID
	return doc
}

// Get возвращает документ по идентификатору артефакта.
func (r *Registry) Get(artifactID string) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[artifactID]
	return doc, ok
}

// AttachCancel регистрирует отмену in-flight операции артефакта.
// Если артефакт уже вытеснен, отмена вызывается немедленно.
// Возвращённый detach снимает привязку по завершении операции,
// чтобы отмены не накапливались на живом документе.
func (r *Registry) AttachCancel(artifactID string, cancel context.CancelFunc) (detach func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[artifactID]
	if !ok || doc.superseded {
		cancel()
		return func() {}
	}

	doc.cancelSeq++
	seq := doc.cancelSeq
	doc.cancels[seq] = cancel

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if doc.cancels != nil {
			delete(doc.cancels, seq)
		}
	}
}

// Superseded сообщает, вытеснен ли артефакт более новым документом.
func (r *Registry) Superseded(artifactID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[artifactID]
	return ok && doc.superseded
}

// AddUpload добавляет запись о попытке загрузки.
// Запись вытесненного артефакта отбрасывается, возвращается false.
func (r *Registry) AddUpload(artifactID string, rec *model.UploadRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[artifactID]
	if !ok || doc.superseded {
		return false
	}
	doc.Uploads = append(doc.Uploads, rec)
	doc.lastActivity = time.Now()
	return true
}

// UpdateUpload применяет изменение записи загрузки под блокировкой
// реестра: конкурирующий Snapshot не увидит частичного обновления.
func (r *Registry) UpdateUpload(rec *model.UploadRecord, mutate func(*model.UploadRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mutate(rec)
}

// AddVerification добавляет запись о попытке верификации.
// Запись вытесненного артефакта отбрасывается, возвращается false.
func (r *Registry) AddVerification(artifactID string, rec *model.VerificationRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[artifactID]
	if !ok || doc.superseded {
		return false
	}
	doc.Verifications = append(doc.Verifications, rec)
	doc.lastActivity = time.Now()
	return true
}

// CleanFinished удаляет вытесненные документы, неактивные дольше
// retention. Актуальные документы владельцев не трогаются: по ним
// отвечает статусный endpoint. Возвращает количество удалённых.
func (r *Registry) CleanFinished(retention time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	deleted := 0
	for artifactID, doc := range r.docs {
		if !doc.superseded || doc.lastActivity.After(cutoff) {
			continue
		}
		delete(r.docs, artifactID)
		deleted++
	}
	return deleted
}

// Snapshot возвращает копию состояния документа для API-ответа.
func (r *Registry) Snapshot(artifactID string) (*DocumentStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[artifactID]
	if !ok {
		return nil, false
	}

	status := &DocumentStatus{
		Artifact:   *doc.Artifact,
		State:      doc.Machine.Current(),
		History:    doc.Machine.History(),
		Superseded: doc.superseded,
	}
	for _, u := range doc.Uploads {
		status.Uploads = append(status.Uploads, *u)
	}
	for _, v := range doc.Verifications {
		status.Verifications = append(status.Verifications, *v)
	}
	return status, true
}
