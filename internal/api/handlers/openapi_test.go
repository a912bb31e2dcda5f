package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

const openapiPath = "../../../api/openapi.yaml"

// loadOpenAPIDoc загружает и валидирует OpenAPI-описание API.
func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()

	loader := openapi3.NewLoader()
	loader.Context = context.Background()

	doc, err := loader.LoadFromFile(openapiPath)
	if err != nil {
		t.Fatalf("Ошибка загрузки OpenAPI-документа: %v", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		t.Fatalf("OpenAPI-документ невалиден: %v", err)
	}
	return doc
}

// routerRoutes собирает зарегистрированные маршруты chi-роутера
// в виде "METHOD /path" с нормализованным хвостовым слэшем.
func routerRoutes(t *testing.T, router chi.Router) map[string]bool {
	t.Helper()

	routes := make(map[string]bool)
	walkFn := func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route != "/" {
			route = strings.TrimSuffix(route, "/")
		}
		routes[method+" "+route] = true
		return nil
	}
	if err := chi.Walk(router, walkFn); err != nil {
		t.Fatalf("Ошибка обхода маршрутов: %v", err)
	}
	return routes
}

func TestOpenAPIDocumentValid(t *testing.T) {
	doc := loadOpenAPIDoc(t)

	if doc.Info == nil || doc.Info.Title == "" {
		t.Error("В OpenAPI-документе отсутствует info.title")
	}
	if len(doc.Paths.Map()) == 0 {
		t.Error("В OpenAPI-документе нет ни одного пути")
	}
}

// TestOpenAPICoversRoutes проверяет, что каждый зарегистрированный
// маршрут описан в OpenAPI-документе и наоборот.
func TestOpenAPICoversRoutes(t *testing.T) {
	doc := loadOpenAPIDoc(t)
	tr := newTestRouter(t)
	routes := routerRoutes(t, tr.router)

	documented := make(map[string]bool)
	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			documented[method+" "+path] = true
		}
	}

	for key := range routes {
		if !documented[key] {
			t.Errorf("Маршрут %s не описан в OpenAPI-документе", key)
		}
	}
	for key := range documented {
		if !routes[key] {
			t.Errorf("Путь %s описан в OpenAPI-документе, но не зарегистрирован в роутере", key)
		}
	}
}

// TestOpenAPIErrorResponses проверяет, что ответы об ошибках
// ссылаются на единую схему ErrorResponse.
func TestOpenAPIErrorResponses(t *testing.T) {
	doc := loadOpenAPIDoc(t)

	schema, ok := doc.Components.Schemas["ErrorResponse"]
	if !ok || schema.Value == nil {
		t.Fatal("Схема ErrorResponse отсутствует в components.schemas")
	}

	errProp, ok := schema.Value.Properties["error"]
	if !ok || errProp.Value == nil {
		t.Fatal("В схеме ErrorResponse отсутствует поле error")
	}
	if _, ok := errProp.Value.Properties["code"]; !ok {
		t.Error("В схеме ошибки отсутствует поле code")
	}
	if _, ok := errProp.Value.Properties["message"]; !ok {
		t.Error("В схеме ошибки отсутствует поле message")
	}
}
