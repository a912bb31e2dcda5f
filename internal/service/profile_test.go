package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	apierrors "github.com/avinashDevlop/AgriLinkProject/internal/api/errors"
	"github.com/avinashDevlop/AgriLinkProject/internal/client/metastore"
	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
)

func TestProfileApplyPatchCreates(t *testing.T) {
	env := newTestEnv(t)
	id := testIdentity()

	profile, opErr := env.profiles.ApplyPatch(context.Background(), id, &model.ProfilePatch{
		Name:         model.Ptr("Ravi"),
		DocumentKind: model.Ptr("land_record"),
	})
	if opErr != nil {
		t.Fatalf("ApplyPatch вернул ошибку: %v", opErr)
	}
	if profile.Name != "Ravi" {
		t.Errorf("Name: хотели Ravi, получили %s", profile.Name)
	}
	if profile.CreatedAt.IsZero() || profile.UpdatedAt.IsZero() {
		t.Error("Временные метки не выставлены")
	}
}

func TestProfileApplyPatchPartialMerge(t *testing.T) {
	env := newTestEnv(t)
	id := testIdentity()

	if _, opErr := env.profiles.ApplyPatch(context.Background(), id, &model.ProfilePatch{
		Name:         model.Ptr("Ravi"),
		DocumentHash: model.Ptr("abc"),
	}); opErr != nil {
		t.Fatalf("Первый патч вернул ошибку: %v", opErr)
	}

	// Второй патч называет только одно поле
	profile, opErr := env.profiles.ApplyPatch(context.Background(), id, &model.ProfilePatch{
		ContentVerified: model.Ptr(true),
	})
	if opErr != nil {
		t.Fatalf("Второй патч вернул ошибку: %v", opErr)
	}

	// Неназванные поля не затёрты
	if profile.Name != "Ravi" || profile.DocumentHash != "abc" {
		t.Errorf("Слияние затёрло поля: name=%q hash=%q", profile.Name, profile.DocumentHash)
	}
	if !profile.ContentVerified {
		t.Error("ContentVerified не выставлен")
	}
}

func TestProfileGetFallsBackToStore(t *testing.T) {
	env := newTestEnv(t)
	id := testIdentity()

	// Пишем профиль напрямую в файловое хранилище, мимо индекса
	if err := env.pstore.Write(&model.UserDocumentProfile{Identity: id, Name: "Ravi"}); err != nil {
		t.Fatalf("Ошибка записи профиля: %v", err)
	}

	profile, opErr := env.profiles.Get(context.Background(), id)
	if opErr != nil {
		t.Fatalf("Get вернул ошибку: %v", opErr)
	}
	if profile.Name != "Ravi" {
		t.Errorf("Name: хотели Ravi, получили %s", profile.Name)
	}

	// Профиль поднят в индекс
	if _, ok := env.idx.Get(id); !ok {
		t.Error("Профиль не поднят в индекс после промаха")
	}
}

func TestProfileGetMetastoreFallback(t *testing.T) {
	env := newTestEnv(t)
	id := testIdentity()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Узел пользователя существует только в метахранилище
	node := map[string]any{
		"name":             "Ravi",
		"document_hash":    "abc",
		"content_verified": true,
		"products": map[string]any{
			"p1": map[string]any{"id": "p1", "name": "Rice"},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+id.Path()+".json" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(node)
	}))
	defer srv.Close()

	meta := metastore.New(srv.URL, "", time.Second, 8, time.Minute, logger)
	profiles := NewProfileService(env.pstore, env.idx, meta, logger)

	profile, opErr := profiles.Get(context.Background(), id)
	if opErr != nil {
		t.Fatalf("Get вернул ошибку: %v", opErr)
	}
	if profile.Name != "Ravi" || profile.DocumentHash != "abc" {
		t.Errorf("Поля узла не перенесены: name=%q hash=%q", profile.Name, profile.DocumentHash)
	}
	if !profile.ContentVerified {
		t.Error("ContentVerified не перенесён")
	}
	if len(profile.Products) != 1 || profile.Products[0].Name != "Rice" {
		t.Errorf("Товары узла не перенесены: %+v", profile.Products)
	}

	// Локальная копия восстановлена по узлу
	restored, err := env.pstore.Read(id)
	if err != nil {
		t.Fatalf("Локальная копия не восстановлена: %v", err)
	}
	if restored.DocumentHash != "abc" {
		t.Errorf("Хэш в восстановленной копии: %q", restored.DocumentHash)
	}
	if _, ok := env.idx.Get(id); !ok {
		t.Error("Профиль не поднят в индекс после восстановления")
	}
}

func TestProfileGetMetastoreNodeAbsent(t *testing.T) {
	env := newTestEnv(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Отсутствующий узел база отдаёт как JSON null
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("null"))
	}))
	defer srv.Close()

	meta := metastore.New(srv.URL, "", time.Second, 8, time.Minute, logger)
	profiles := NewProfileService(env.pstore, env.idx, meta, logger)

	_, opErr := profiles.Get(context.Background(), testIdentity())
	if opErr == nil || opErr.Code != apierrors.CodeNotFound {
		t.Fatalf("Ожидали NOT_FOUND, получили %v", opErr)
	}
}

func TestProfileGetNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, opErr := env.profiles.Get(context.Background(), testIdentity())
	if opErr == nil || opErr.Code != apierrors.CodeNotFound {
		t.Fatalf("Ожидали NOT_FOUND, получили %v", opErr)
	}
}

func TestProfileApplyPatchInvalidIdentity(t *testing.T) {
	env := newTestEnv(t)

	_, opErr := env.profiles.ApplyPatch(context.Background(), model.Identity{}, &model.ProfilePatch{
		Name: model.Ptr("Ravi"),
	})
	if opErr == nil || opErr.Code != apierrors.CodeValidationError {
		t.Fatalf("Ожидали VALIDATION_ERROR, получили %v", opErr)
	}
}

func TestAddProduct(t *testing.T) {
	env := newTestEnv(t)
	id := testIdentity()

	product, opErr := env.profiles.AddProduct(context.Background(), id, model.Product{
		Name:         "Rice",
		Category:     "grains",
		PricePerUnit: 42.5,
		Unit:         "quintal",
		Quantity:     10,
	})
	if opErr != nil {
		t.Fatalf("AddProduct вернул ошибку: %v", opErr)
	}
	if product.ID == "" {
		t.Error("Товару не присвоен идентификатор")
	}
	if product.CreatedAt.IsZero() {
		t.Error("CreatedAt товара не выставлен")
	}

	products, opErr := env.profiles.ListProducts(context.Background(), id)
	if opErr != nil {
		t.Fatalf("ListProducts вернул ошибку: %v", opErr)
	}
	if len(products) != 1 || products[0].Name != "Rice" {
		t.Errorf("Товары: %+v", products)
	}
}

func TestAddProductRequiresName(t *testing.T) {
	env := newTestEnv(t)

	_, opErr := env.profiles.AddProduct(context.Background(), testIdentity(), model.Product{})
	if opErr == nil || opErr.Code != apierrors.CodeValidationError {
		t.Fatalf("Ожидали VALIDATION_ERROR, получили %v", opErr)
	}
}
