package index

import (
	"testing"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/profilestore"
)

func profile(phone string, verified bool) *model.UserDocumentProfile {
	return &model.UserDocumentProfile{
		Identity: model.Identity{
			UserType: model.UserFarmer,
			State:    "AP",
			District: "Guntur",
			Phone:    phone,
		},
		ContentVerified: verified,
	}
}

func TestPutGet(t *testing.T) {
	idx := New()
	p := profile("111", false)
	p.Products = []model.Product{{ID: "p1", Name: "Rice"}}
	idx.Put(p)

	got, ok := idx.Get(p.Identity)
	if !ok {
		t.Fatal("профиль не найден")
	}
	if got.Identity.Phone != "111" {
		t.Errorf("Phone = %q", got.Identity.Phone)
	}

	// Get возвращает копию: мутация результата не влияет на индекс
	got.Products[0].Name = "mutated"
	again, _ := idx.Get(p.Identity)
	if again.Products[0].Name == "mutated" {
		t.Error("Get() вернул не копию")
	}

	// Put сохраняет копию: мутация аргумента не влияет на индекс
	p.Name = "mutated"
	again, _ = idx.Get(p.Identity)
	if again.Name == "mutated" {
		t.Error("Put() сохранил не копию")
	}
}

func TestGetMissing(t *testing.T) {
	idx := New()
	if _, ok := idx.Get(profile("404", false).Identity); ok {
		t.Error("найден несуществующий профиль")
	}
}

func TestRemove(t *testing.T) {
	idx := New()
	p := profile("111", false)
	idx.Put(p)
	idx.Remove(p.Identity)
	if _, ok := idx.Get(p.Identity); ok {
		t.Error("профиль не удалён")
	}
	if idx.Count() != 0 {
		t.Errorf("Count = %d", idx.Count())
	}
}

func TestListPagination(t *testing.T) {
	idx := New()
	for _, phone := range []string{"333", "111", "222"} {
		idx.Put(profile(phone, false))
	}

	all := idx.List(0, 0)
	if len(all) != 3 {
		t.Fatalf("List(0,0) вернул %d профилей", len(all))
	}
	// Отсортировано по пути идентичности
	if all[0].Identity.Phone != "111" {
		t.Errorf("первый профиль: %s", all[0].Identity.Phone)
	}

	page := idx.List(1, 1)
	if len(page) != 1 || page[0].Identity.Phone != "222" {
		t.Errorf("List(1,1): %+v", page)
	}

	if got := idx.List(10, 5); got != nil {
		t.Errorf("List за пределами: %v", got)
	}
}

func TestCountVerified(t *testing.T) {
	idx := New()
	idx.Put(profile("111", true))
	idx.Put(profile("222", false))
	idx.Put(profile("333", true))

	if got := idx.CountVerified(); got != 2 {
		t.Errorf("CountVerified = %d, ожидалось 2", got)
	}
}

func TestBuildFromStore(t *testing.T) {
	store, err := profilestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("profilestore.New: %v", err)
	}
	for _, phone := range []string{"111", "222"} {
		if err := store.Write(profile(phone, false)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	idx := New()
	if idx.IsReady() {
		t.Error("индекс готов до построения")
	}
	if err := idx.BuildFromStore(store); err != nil {
		t.Fatalf("BuildFromStore: %v", err)
	}
	if !idx.IsReady() {
		t.Error("индекс не готов после построения")
	}
	if idx.Count() != 2 {
		t.Errorf("Count = %d, ожидалось 2", idx.Count())
	}
}
