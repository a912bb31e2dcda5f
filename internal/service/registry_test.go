package service

import (
	"context"
	"testing"
	"time"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
)

func registryArtifact(id string) *model.Artifact {
	return &model.Artifact{
		ID:        id,
		Kind:      "land_record",
		MediaType: "image/jpeg",
		SizeBytes: 1024,
		Source:    model.SourceFile,
	}
}

func TestRegisterSupersedesPrevious(t *testing.T) {
	reg := NewRegistry()
	id := testIdentity()

	reg.Register(registryArtifact("a1"), id)
	reg.Register(registryArtifact("a2"), id)

	if !reg.Superseded("a1") {
		t.Error("Первый артефакт не вытеснен")
	}
	if reg.Superseded("a2") {
		t.Error("Новый артефакт вытеснен")
	}
}

func TestRegisterCancelsInflight(t *testing.T) {
	reg := NewRegistry()
	id := testIdentity()

	reg.Register(registryArtifact("a1"), id)

	ctx, cancel := context.WithCancel(context.Background())
	reg.AttachCancel("a1", cancel)

	reg.Register(registryArtifact("a2"), id)

	select {
	case <-ctx.Done():
	default:
		t.Error("In-flight операция вытесненного артефакта не отменена")
	}
}

func TestAttachCancelAfterSupersede(t *testing.T) {
	reg := NewRegistry()
	id := testIdentity()

	reg.Register(registryArtifact("a1"), id)
	reg.Register(registryArtifact("a2"), id)

	// Поздняя привязка к вытесненному артефакту: отмена немедленно
	ctx, cancel := context.WithCancel(context.Background())
	reg.AttachCancel("a1", cancel)

	select {
	case <-ctx.Done():
	default:
		t.Error("Отмена не вызвана немедленно для вытесненного артефакта")
	}
}

func TestAddDiscardedForSuperseded(t *testing.T) {
	reg := NewRegistry()
	id := testIdentity()

	reg.Register(registryArtifact("a1"), id)
	reg.Register(registryArtifact("a2"), id)

	// Поздние результаты вытесненного артефакта отбрасываются
	if reg.AddUpload("a1", &model.UploadRecord{ID: "u1", ArtifactID: "a1"}) {
		t.Error("Запись загрузки вытесненного артефакта принята")
	}
	if reg.AddVerification("a1", &model.VerificationRecord{ID: "v1", ArtifactID: "a1"}) {
		t.Error("Запись верификации вытесненного артефакта принята")
	}

	if !reg.AddUpload("a2", &model.UploadRecord{ID: "u2", ArtifactID: "a2"}) {
		t.Error("Запись актуального артефакта отброшена")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	reg := NewRegistry()
	doc := reg.Register(registryArtifact("a1"), testIdentity())

	reg.AddUpload("a1", &model.UploadRecord{ID: "u1", ArtifactID: "a1", State: model.UploadPending})

	snap, ok := reg.Snapshot("a1")
	if !ok {
		t.Fatal("Снимок не получен")
	}

	// Мутация снимка не затрагивает реестр
	snap.Uploads[0].State = model.UploadFailed
	if doc.Uploads[0].State != model.UploadPending {
		t.Error("Мутация снимка изменила реестр")
	}
}

func TestSnapshotMissing(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Snapshot("missing"); ok {
		t.Error("Снимок несуществующего артефакта получен")
	}
}

func TestDetachCancelReleasesBinding(t *testing.T) {
	reg := NewRegistry()
	id := testIdentity()

	reg.Register(registryArtifact("a1"), id)

	ctx, cancel := context.WithCancel(context.Background())
	detach := reg.AttachCancel("a1", cancel)
	detach()

	// Отвязанная операция завершена: вытеснение её не отменяет
	reg.Register(registryArtifact("a2"), id)

	select {
	case <-ctx.Done():
		t.Error("Отмена вызвана для отвязанной операции")
	default:
	}
}

func TestCleanFinishedEvictsSuperseded(t *testing.T) {
	reg := NewRegistry()
	id := testIdentity()

	reg.Register(registryArtifact("a1"), id)
	reg.Register(registryArtifact("a2"), id)

	// Нулевой срок хранения: вытесненный документ удаляется сразу
	deleted := reg.CleanFinished(0)
	if deleted != 1 {
		t.Errorf("Удалено документов: хотели 1, получили %d", deleted)
	}
	if _, ok := reg.Snapshot("a1"); ok {
		t.Error("Вытесненный документ не удалён из реестра")
	}
	if _, ok := reg.Snapshot("a2"); !ok {
		t.Error("Актуальный документ удалён из реестра")
	}
}

func TestCleanFinishedKeepsRecent(t *testing.T) {
	reg := NewRegistry()
	id := testIdentity()

	reg.Register(registryArtifact("a1"), id)
	reg.Register(registryArtifact("a2"), id)

	// Внутри срока хранения вытесненный документ остаётся доступным
	if deleted := reg.CleanFinished(time.Hour); deleted != 0 {
		t.Errorf("Удалено документов: хотели 0, получили %d", deleted)
	}
	if _, ok := reg.Snapshot("a1"); !ok {
		t.Error("Вытесненный документ удалён до истечения срока хранения")
	}
}
