// Пакет metastore — HTTP-клиент метахранилища (realtime KV база).
// Узел пользователя адресуется путём users/{userType}/{state}/{district}/{phone};
// запись выполняется только частичным PATCH-слиянием полей, узел целиком
// никогда не перезаписывается. Чтение идёт через expirable LRU-кэш,
// инвалидируемый при каждом PATCH.
package metastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
)

// Метрики кэша метахранилища.
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_metastore_cache_hits_total",
		Help: "Количество попаданий в кэш чтения метахранилища",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_metastore_cache_misses_total",
		Help: "Количество промахов кэша чтения метахранилища",
	})
)

// Client — HTTP-клиент метахранилища.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string //nolint:gosec // G101: поле структуры, не содержит секрет напрямую
	logger     *slog.Logger

	// cache — read-through кэш узлов пользователей, ключ — путь идентичности
	cache *expirable.LRU[string, map[string]any]
}

// New создаёт клиент метахранилища.
// baseURL — базовый URL базы (например, https://agrilink.firebaseio.com).
// authToken — токен доступа (пустая строка — база без авторизации).
// cacheSize/cacheTTL — параметры read-through кэша.
func New(
	baseURL string,
	authToken string,
	timeout time.Duration,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		logger:     logger.With(slog.String("component", "metastore_client")),
		cache:      expirable.NewLRU[string, map[string]any](cacheSize, nil, cacheTTL),
	}
}

// GetUserNode читает узел пользователя.
// Возвращает nil без ошибки, если узла ещё нет (база отвечает null).
func (c *Client) GetUserNode(ctx context.Context, id model.Identity) (map[string]any, error) {
	path := id.Path()

	if node, ok := c.cache.Get(path); ok {
		cacheHits.Inc()
		return node, nil
	}
	cacheMisses.Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL(path), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса GetUserNode: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос узла %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("метахранилище вернуло статус %d для %s: %s",
			resp.StatusCode, path, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа метахранилища: %w", err)
	}

	// Отсутствующий узел база отдаёт как JSON null
	if strings.TrimSpace(string(data)) == "null" {
		return nil, nil
	}

	var node map[string]any
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("декодирование узла %s: %w", path, err)
	}

	c.cache.Add(path, node)
	return node, nil
}

// PatchUserNode выполняет частичное слияние полей в узел пользователя.
// Поля, не названные в fields, не затрагиваются. Кэш узла инвалидируется.
func (c *Client) PatchUserNode(ctx context.Context, id model.Identity, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	path := id.Path()

	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("сериализация полей для PATCH: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.nodeURL(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("создание запроса PatchUserNode: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("PATCH узла %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("метахранилище вернуло статус %d для PATCH %s: %s",
			resp.StatusCode, path, string(respBody))
	}

	c.cache.Remove(path)

	c.logger.Debug("Узел пользователя обновлён",
		slog.String("path", path),
		slog.Int("fields", len(fields)),
	)

	return nil
}

// PatchSubNode выполняет частичное слияние в под-ключ узла пользователя
// (например, products). Кэш узла инвалидируется.
func (c *Client) PatchSubNode(ctx context.Context, id model.Identity, subKey string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	path := id.Path() + "/" + model.SanitizeKey(subKey)

	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("сериализация полей для PATCH: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.nodeURL(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("создание запроса PatchSubNode: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("PATCH под-ключа %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("метахранилище вернуло статус %d для PATCH %s: %s",
			resp.StatusCode, path, string(respBody))
	}

	c.cache.Remove(id.Path())
	return nil
}

// BaseURL возвращает базовый URL метахранилища.
// Используется dephealth-проверкой.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// nodeURL строит URL узла: {base}/{path}.json[?auth={token}].
func (c *Client) nodeURL(path string) string {
	u := c.baseURL + "/" + path + ".json"
	if c.authToken != "" {
		u += "?auth=" + url.QueryEscape(c.authToken)
	}
	return u
}
