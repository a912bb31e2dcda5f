package metastore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
)

func testIdentity() model.Identity {
	return model.Identity{
		UserType: model.UserFarmer,
		State:    "AP",
		District: "Guntur",
		Phone:    "9876543210",
	}
}

func TestGetUserNode(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/users/farmer/AP/Guntur/9876543210.json" {
			t.Errorf("путь запроса: %s", r.URL.Path)
		}
		w.Write([]byte(`{"name":"Ravi","document_hash":"abc"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second, 16, time.Minute, slog.Default())

	node, err := c.GetUserNode(context.Background(), testIdentity())
	if err != nil {
		t.Fatalf("GetUserNode: %v", err)
	}
	if node["name"] != "Ravi" {
		t.Errorf("name = %v", node["name"])
	}

	// Повторное чтение обслуживается кэшем
	if _, err := c.GetUserNode(context.Background(), testIdentity()); err != nil {
		t.Fatalf("повторный GetUserNode: %v", err)
	}
	if hits != 1 {
		t.Errorf("количество запросов к серверу = %d, ожидался 1", hits)
	}
}

func TestGetUserNodeMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second, 16, time.Minute, slog.Default())
	node, err := c.GetUserNode(context.Background(), testIdentity())
	if err != nil {
		t.Fatalf("GetUserNode: %v", err)
	}
	if node != nil {
		t.Errorf("для отсутствующего узла ожидался nil, получено %v", node)
	}
}

func TestPatchUserNode(t *testing.T) {
	var gotMethod string
	var gotBody map[string]any
	gets := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			gotMethod = r.Method
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &gotBody)
			w.Write([]byte(`{}`))
			return
		}
		gets++
		w.Write([]byte(`{"name":"Ravi"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second, 16, time.Minute, slog.Default())
	id := testIdentity()

	// Прогреваем кэш
	if _, err := c.GetUserNode(context.Background(), id); err != nil {
		t.Fatalf("GetUserNode: %v", err)
	}

	err := c.PatchUserNode(context.Background(), id, map[string]any{
		"document_hash":    "d1c627ff",
		"content_verified": true,
	})
	if err != nil {
		t.Fatalf("PatchUserNode: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("метод = %s, ожидался PATCH", gotMethod)
	}
	// Передаются только названные поля
	if len(gotBody) != 2 || gotBody["document_hash"] != "d1c627ff" {
		t.Errorf("тело PATCH: %v", gotBody)
	}

	// PATCH инвалидировал кэш: следующее чтение идёт на сервер
	if _, err := c.GetUserNode(context.Background(), id); err != nil {
		t.Fatalf("GetUserNode после PATCH: %v", err)
	}
	if gets != 2 {
		t.Errorf("количество GET = %d, ожидалось 2", gets)
	}
}

func TestPatchEmptyFields(t *testing.T) {
	c := New("http://unreachable.invalid", "", time.Second, 16, time.Minute, slog.Default())
	// Пустой патч не выполняет сетевых запросов
	if err := c.PatchUserNode(context.Background(), testIdentity(), nil); err != nil {
		t.Errorf("пустой PATCH: %v", err)
	}
}

func TestAuthTokenAppended(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.URL.Query().Get("auth")
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token", 5*time.Second, 16, time.Minute, slog.Default())
	if _, err := c.GetUserNode(context.Background(), testIdentity()); err != nil {
		t.Fatalf("GetUserNode: %v", err)
	}
	if gotAuth != "secret-token" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second, 16, time.Minute, slog.Default())
	if _, err := c.GetUserNode(context.Background(), testIdentity()); err == nil {
		t.Error("ожидалась ошибка для статуса 500")
	}
	if err := c.PatchUserNode(context.Background(), testIdentity(), map[string]any{"a": 1}); err == nil {
		t.Error("ожидалась ошибка PATCH для статуса 500")
	}
}
