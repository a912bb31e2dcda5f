// Пакет contentstore — HTTP-клиент контент-адресуемого хранилища
// (pinning-сервис IPFS-типа). Хранилище адресует содержимое собственным
// идентификатором (CID); этот идентификатор — отдельный хэш-домен
// и напрямую с локальным SHA-256 никогда не сравнивается.
// Чтение идёт через публичный gateway: {gatewayBase}/{cid}.
package contentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client — HTTP-клиент pinning-сервиса и gateway.
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	apiSecret  string //nolint:gosec // G101: поле структуры, не содержит секрет напрямую
	gatewayURL string
	logger     *slog.Logger
}

// New создаёт клиент контент-хранилища.
// apiURL — базовый URL pinning API (например, https://api.pinata.cloud).
// gatewayURL — базовый URL gateway (например, https://gateway.pinata.cloud/ipfs).
func New(apiURL, apiKey, apiSecret, gatewayURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		logger:     logger.With(slog.String("component", "contentstore_client")),
	}
}

// pinResponse — ответ pinning-сервиса.
type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// pinMetadata — метаданные, прикладываемые к закрепляемому содержимому.
type pinMetadata struct {
	Name      string            `json:"name"`
	Keyvalues map[string]string `json:"keyvalues,omitempty"`
}

// Pin загружает содержимое в контент-хранилище и возвращает CID.
// Тело запроса — multipart: поле file с байтами документа и поле
// pinataMetadata с именем и ключ-значениями для поиска.
func (c *Client) Pin(ctx context.Context, r io.Reader, filename string, keyvalues map[string]string) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// Тело формируется в отдельной горутине: поток документа
	// не буферизуется целиком в памяти
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("создание multipart-поля file: %w", err))
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(fmt.Errorf("копирование содержимого: %w", err))
			return
		}

		meta, err := json.Marshal(pinMetadata{Name: filename, Keyvalues: keyvalues})
		if err != nil {
			pw.CloseWithError(fmt.Errorf("сериализация pinataMetadata: %w", err))
			return
		}
		if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
			pw.CloseWithError(fmt.Errorf("запись pinataMetadata: %w", err))
			return
		}

		pw.CloseWithError(mw.Close())
	}()

	reqURL := c.apiURL + "/pinning/pinFileToIPFS"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, pr)
	if err != nil {
		return "", fmt.Errorf("создание запроса Pin: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("запрос Pin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("pinning-сервис вернул статус %d: %s",
			resp.StatusCode, string(body))
	}

	var pinned pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pinned); err != nil {
		return "", fmt.Errorf("декодирование ответа Pin: %w", err)
	}
	if pinned.IpfsHash == "" {
		return "", fmt.Errorf("пустой CID в ответе pinning-сервиса")
	}

	c.logger.Debug("Содержимое закреплено",
		slog.String("cid", pinned.IpfsHash),
		slog.Int64("pin_size", pinned.PinSize),
	)

	return pinned.IpfsHash, nil
}

// Fetch открывает содержимое по CID через gateway для потокового чтения.
// Вызывающий код обязан закрыть Body ответа.
func (c *Client) Fetch(ctx context.Context, cid string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GatewayURL(cid), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса Fetch: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("чтение содержимого %s через gateway: %w", cid, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("gateway вернул статус %d для %s: %s",
			resp.StatusCode, cid, string(body))
	}

	return resp, nil
}

// GatewayURL возвращает публичный URL содержимого: {gatewayBase}/{cid}.
func (c *Client) GatewayURL(cid string) string {
	return c.gatewayURL + "/" + cid
}

// APIURL возвращает базовый URL pinning API.
// Используется dephealth-проверкой.
func (c *Client) APIURL() string {
	return c.apiURL
}
