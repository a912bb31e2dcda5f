// Пакет ledger — HTTP-клиент внешнего реестра аттестаций.
// Реестр фиксирует хэш документа и возвращает идентификатор транзакции
// со ссылкой на обозреватель. Реестр необязателен: его недоступность —
// мягкая деградация, ранее подтверждённый статус документа сохраняется.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable — реестр недоступен или не сконфигурирован.
// Вызывающий код обязан трактовать эту ошибку как мягкую.
var ErrUnavailable = errors.New("реестр аттестаций недоступен")

// Attestation — результат фиксации хэша в реестре.
type Attestation struct {
	// TransactionID — идентификатор транзакции реестра
	TransactionID string `json:"transaction_id"`
	// ExplorerURL — ссылка на транзакцию в обозревателе
	ExplorerURL string `json:"explorer_url"`
	// Network — имя сети реестра
	Network string `json:"network,omitempty"`
}

// Client — HTTP-клиент реестра.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New создаёт клиент реестра.
// baseURL — базовый URL сервиса аттестаций; пустая строка означает,
// что реестр не сконфигурирован и Attest всегда вернёт ErrUnavailable.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With(slog.String("component", "ledger_client")),
	}
}

// Enabled сообщает, сконфигурирован ли реестр.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// attestRequest — тело запроса фиксации хэша.
type attestRequest struct {
	DocumentHash string `json:"document_hash"`
	Identity     string `json:"identity"`
}

// Attest фиксирует хэш документа в реестре.
// Сетевые ошибки и ошибки сервиса оборачиваются в ErrUnavailable:
// недоступность реестра никогда не отменяет ранее подтверждённую
// верификацию.
func (c *Client) Attest(ctx context.Context, documentHash, identity string) (*Attestation, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: сервис не сконфигурирован", ErrUnavailable)
	}

	body, err := json.Marshal(attestRequest{DocumentHash: documentHash, Identity: identity})
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса аттестации: %w", err)
	}

	reqURL := c.baseURL + "/api/v1/attestations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("создание запроса Attest: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: статус %d: %s", ErrUnavailable, resp.StatusCode, string(respBody))
	}

	var att Attestation
	if err := json.NewDecoder(resp.Body).Decode(&att); err != nil {
		return nil, fmt.Errorf("%w: декодирование ответа: %v", ErrUnavailable, err)
	}
	if att.TransactionID == "" {
		return nil, fmt.Errorf("%w: пустой идентификатор транзакции", ErrUnavailable)
	}

	c.logger.Info("Хэш зафиксирован в реестре",
		slog.String("tx_id", att.TransactionID),
		slog.String("network", att.Network),
	)

	return &att, nil
}

// BaseURL возвращает базовый URL реестра.
// Используется dephealth-проверкой.
func (c *Client) BaseURL() string {
	return c.baseURL
}
