// Пакет channel — HTTP-клиент Bot API платформы сообщений.
// Отправляет файлы в канал, удаляет сообщения, получает прямые ссылки
// на файлы и скачивает их потоком. Все вызовы API проходят через
// ограничитель скорости (token bucket).
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// remoteCallsTotal — количество вызовов Bot API по методам и результату.
var remoteCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cs_remote_calls_total",
		Help: "Количество вызовов Bot API",
	},
	[]string{"method", "result"},
)

// Config — параметры клиента.
type Config struct {
	// BaseURL — адрес Bot API (https://api.telegram.org)
	BaseURL   string
	Token     string
	ChannelID string
	Timeout   time.Duration
	// RateLimit — запросов в секунду, RateBurst — размер burst
	RateLimit float64
	RateBurst int
}

// Client — клиент Bot API, привязанный к одному каналу.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	channelID  string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// apiResponse — общий конверт ответа Bot API.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// New создаёт клиент Bot API.
func New(cfg Config, logger *slog.Logger) *Client {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
			},
		},
		baseURL:   normalizeURL(cfg.BaseURL),
		token:     cfg.Token,
		channelID: cfg.ChannelID,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger.With(slog.String("component", "channel_client")),
	}
}

// BaseURL возвращает адрес Bot API (для проверки доступности).
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SendDocument загружает файл в канал как документ.
// Пустой caption заменяется именем файла.
// Ответ ok:true без файла возвращает ErrNoFileHandle вместе с Raw.
//
// Формат запроса: POST {base}/bot{token}/sendDocument (multipart/form-data)
func (c *Client) SendDocument(ctx context.Context, fileName string, data []byte, caption string) (*SentFile, error) {
	if caption == "" {
		caption = fileName
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", c.channelID); err != nil {
		return nil, fmt.Errorf("формирование запроса sendDocument: %w", err)
	}
	if err := mw.WriteField("caption", caption); err != nil {
		return nil, fmt.Errorf("формирование запроса sendDocument: %w", err)
	}
	part, err := mw.CreateFormFile("document", fileName)
	if err != nil {
		return nil, fmt.Errorf("формирование запроса sendDocument: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("формирование запроса sendDocument: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("формирование запроса sendDocument: %w", err)
	}

	result, err := c.call(ctx, "sendDocument", &body, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var msg message
	if err := json.Unmarshal(result, &msg); err != nil {
		return nil, fmt.Errorf("декодирование ответа sendDocument: %w", err)
	}

	sent, ok := normalize(&msg)
	sent.Raw = result
	if !ok {
		return &sent, ErrNoFileHandle
	}
	return &sent, nil
}

// DeleteMessage удаляет сообщение из канала.
func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":    c.channelID,
		"message_id": messageID,
	})
	if err != nil {
		return fmt.Errorf("формирование запроса deleteMessage: %w", err)
	}

	_, err = c.call(ctx, "deleteMessage", bytes.NewReader(payload), "application/json")
	return err
}

// ResolveFileURL получает прямую ссылку на скачивание по file_id.
// Ссылка действует ограниченное время (около часа).
func (c *Client) ResolveFileURL(ctx context.Context, fileHandle string) (string, error) {
	handle := strings.TrimSpace(fileHandle)
	if handle == "" {
		return "", fmt.Errorf("getFile: пустой file_id")
	}

	payload, err := json.Marshal(map[string]string{"file_id": handle})
	if err != nil {
		return "", fmt.Errorf("формирование запроса getFile: %w", err)
	}

	result, err := c.call(ctx, "getFile", bytes.NewReader(payload), "application/json")
	if err != nil {
		return "", err
	}

	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(result, &file); err != nil {
		return "", fmt.Errorf("декодирование ответа getFile: %w", err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("getFile: в ответе нет file_path")
	}

	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, file.FilePath), nil
}

// Download выполняет streaming-загрузку файла по прямой ссылке.
// Возвращает *http.Response — вызывающий код ОБЯЗАН закрыть resp.Body.
// Ответ со статусом не 2xx возвращается как ошибка.
func (c *Client) Download(ctx context.Context, fileURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса Download: %w", err)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL получен от Bot API
	if err != nil {
		return nil, fmt.Errorf("запрос Download: %w", redactToken(err, c.token))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("скачивание файла: HTTP %d", resp.StatusCode)
	}

	// Не закрываем resp.Body — вызывающий код отвечает за это (streaming)
	return resp, nil
}

// call выполняет метод Bot API и возвращает поле result.
// ok:false превращается в *APIError, остальные сбои — в обёрнутые ошибки транспорта.
func (c *Client) call(ctx context.Context, method string, body io.Reader, contentType string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		remoteCallsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s: ожидание лимита запросов: %w", method, err)
	}

	reqURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s: %w", method, redactToken(err, c.token))
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		remoteCallsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("запрос %s: %w", method, redactToken(err, c.token))
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		remoteCallsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s: неожиданный ответ HTTP %d: %w", method, resp.StatusCode, err)
	}

	c.logger.Debug("Вызов Bot API",
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Bool("ok", envelope.OK),
		slog.Duration("duration", time.Since(start)),
	)

	if !envelope.OK {
		remoteCallsTotal.WithLabelValues(method, "api_error").Inc()
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{Method: method, Code: code, Description: envelope.Description}
	}

	remoteCallsTotal.WithLabelValues(method, "ok").Inc()
	return envelope.Result, nil
}

// redactToken убирает токен бота из текста ошибки (url.Error содержит URL).
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}
