// Пакет objectstore — HTTP-клиент изменяемого объектного хранилища.
// Хранилище принимает байты по пути-ключу и выдаёт download URL;
// повторная загрузка по тому же пути перезаписывает объект.
// Прогресс передачи отдаётся через монотонно неубывающий колбэк.
package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProgressFunc — колбэк прогресса передачи, доля [0..1].
type ProgressFunc func(fraction float64)

// Client — HTTP-клиент объектного хранилища.
type Client struct {
	httpClient *http.Client
	baseURL    string
	bucket     string
	logger     *slog.Logger
}

// New создаёт клиент объектного хранилища.
// baseURL — базовый URL REST API (например, https://firebasestorage.googleapis.com).
// bucket — имя бакета (например, agrilink.appspot.com).
func New(baseURL, bucket string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		logger:     logger.With(slog.String("component", "objectstore_client")),
	}
}

// uploadResponse — ответ хранилища на загрузку объекта.
type uploadResponse struct {
	Name           string `json:"name"`
	DownloadTokens string `json:"downloadTokens"`
}

// Put загружает объект по пути-ключу и возвращает download URL.
// size — фактический размер в байтах (для вычисления прогресса).
// progress может быть nil.
func (c *Client) Put(
	ctx context.Context,
	objectPath string,
	r io.Reader,
	contentType string,
	size int64,
	progress ProgressFunc,
) (string, error) {
	reqURL := fmt.Sprintf("%s/v0/b/%s/o?uploadType=media&name=%s",
		c.baseURL, c.bucket, url.QueryEscape(objectPath))

	body := io.Reader(r)
	if progress != nil && size > 0 {
		body = newProgressReader(r, size, progress)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return "", fmt.Errorf("создание запроса Put: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if size > 0 {
		req.ContentLength = size
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("загрузка объекта %s: %w", objectPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("объектное хранилище вернуло статус %d для %s: %s",
			resp.StatusCode, objectPath, string(respBody))
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", fmt.Errorf("декодирование ответа загрузки: %w", err)
	}

	downloadURL := fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media",
		c.baseURL, c.bucket, url.PathEscape(objectPath))
	if ur.DownloadTokens != "" {
		downloadURL += "&token=" + url.QueryEscape(ur.DownloadTokens)
	}

	if progress != nil {
		progress(1.0)
	}

	c.logger.Debug("Объект загружен",
		slog.String("path", objectPath),
		slog.Int64("size", size),
	)

	return downloadURL, nil
}

// Get открывает объект для потокового чтения по download URL.
// Вызывающий код обязан закрыть Body ответа.
func (c *Client) Get(ctx context.Context, downloadURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса Get: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("чтение объекта: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("объектное хранилище вернуло статус %d: %s",
			resp.StatusCode, string(body))
	}

	return resp, nil
}

// BaseURL возвращает базовый URL хранилища.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// progressReader — обёртка io.Reader, сообщающая прогресс чтения.
// Доля монотонно неубывает и не превышает 1.0.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	last     float64
	progress ProgressFunc
}

func newProgressReader(r io.Reader, total int64, progress ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, progress: progress}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.read += int64(n)
		fraction := float64(pr.read) / float64(pr.total)
		if fraction > 1.0 {
			fraction = 1.0
		}
		// Доля не убывает даже при некорректном total
		if fraction > pr.last {
			pr.last = fraction
			pr.progress(fraction)
		}
	}
	return n, err
}
