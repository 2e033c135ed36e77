// Пакет config — загрузка и валидация конфигурации Channel Store
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Поддерживаемые backend'ы хранилища записей.
const (
	StoreJSON     = "json"
	StoreBadger   = "badger"
	StoreS3       = "s3"
	StorePostgres = "postgres"
)

// Config содержит все параметры конфигурации Channel Store.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Токен бота платформы сообщений
	BotToken string
	// Идентификатор канала (@name или числовой id)
	ChannelID string
	// Базовый URL Bot API
	APIBaseURL string
	// Таймаут одного вызова Bot API
	APITimeout time.Duration
	// Ограничение исходящих запросов к Bot API (запросов в секунду)
	APIRateLimit float64
	// Burst для ограничителя исходящих запросов
	APIRateBurst int

	// Backend хранилища записей: json, badger, s3, postgres
	StoreBackend string
	// Путь к JSON-файлу записей (backend json)
	StorePath string
	// Директория Badger (backend badger)
	BadgerDir string
	// Параметры S3 (backend s3)
	S3Bucket    string
	S3Key       string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	// DSN PostgreSQL (backend postgres)
	DatabaseDSN string

	// Директория журнала загрузок
	JournalDir string

	// Учётные данные администратора UI
	AdminUser string
	AdminPass string
	// Секрет подписи сессий (пустой — случайный при каждом старте)
	SessionSecret string
	// Время жизни сессии
	SessionTTL time.Duration
	// Secure flag для cookie сессии
	CookieSecure bool
	// Попыток входа в минуту с одного адреса
	LoginRatePerMinute int

	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Параллелизм пакетной загрузки
	UploadConcurrency int
	// Параллелизм пакетного удаления
	DeleteConcurrency int

	// Размер и TTL кэша прямых ссылок (TTL 0 — кэш выключен)
	LinkCacheSize int
	LinkCacheTTL  time.Duration

	// Максимальный размер текстового предпросмотра
	PreviewMaxBytes int64

	// Интервал проверки доступности Bot API (0 — выключено)
	DephealthCheckInterval time.Duration

	// Путь к TLS сертификату и ключу (опционально)
	TLSCert string
	TLSKey  string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// CS_PORT — порт HTTP-сервера (по умолчанию 8100)
	cfg.Port, err = getEnvInt("CS_PORT", 8100)
	if err != nil {
		return nil, fmt.Errorf("CS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CS_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	// CS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CS_LOG_LEVEL: %w", err)
	}

	// CS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// CS_BOT_TOKEN, CS_CHANNEL_ID — обязательные
	cfg.BotToken, err = getEnvRequired("CS_BOT_TOKEN")
	if err != nil {
		return nil, err
	}
	cfg.ChannelID, err = getEnvRequired("CS_CHANNEL_ID")
	if err != nil {
		return nil, err
	}

	cfg.APIBaseURL = strings.TrimRight(getEnvDefault("CS_API_BASE_URL", "https://api.telegram.org"), "/")

	cfg.APITimeout, err = getEnvDuration("CS_API_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_API_TIMEOUT: %w", err)
	}

	cfg.APIRateLimit, err = getEnvFloat("CS_API_RATE_LIMIT", 20)
	if err != nil {
		return nil, fmt.Errorf("CS_API_RATE_LIMIT: %w", err)
	}
	if cfg.APIRateLimit <= 0 {
		return nil, fmt.Errorf("CS_API_RATE_LIMIT: значение должно быть положительным")
	}

	cfg.APIRateBurst, err = getEnvInt("CS_API_RATE_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("CS_API_RATE_BURST: %w", err)
	}
	if cfg.APIRateBurst < 1 {
		return nil, fmt.Errorf("CS_API_RATE_BURST: значение должно быть >= 1")
	}

	// CS_STORE_BACKEND — backend хранилища записей (по умолчанию json)
	cfg.StoreBackend = getEnvDefault("CS_STORE_BACKEND", StoreJSON)
	cfg.StorePath = getEnvDefault("CS_STORE_PATH", "data/messages.json")
	cfg.BadgerDir = getEnvDefault("CS_BADGER_DIR", "data/badger")
	cfg.S3Bucket = getEnvDefault("CS_S3_BUCKET", "")
	cfg.S3Key = getEnvDefault("CS_S3_KEY", "messages.json")
	cfg.S3Region = getEnvDefault("CS_S3_REGION", "us-east-1")
	cfg.S3Endpoint = getEnvDefault("CS_S3_ENDPOINT", "")
	cfg.S3AccessKey = getEnvDefault("CS_S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnvDefault("CS_S3_SECRET_KEY", "")
	cfg.DatabaseDSN = getEnvDefault("CS_DB_DSN", "")

	switch cfg.StoreBackend {
	case StoreJSON, StoreBadger:
	case StoreS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("CS_S3_BUCKET: обязателен для backend %q", StoreS3)
		}
	case StorePostgres:
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("CS_DB_DSN: обязателен для backend %q", StorePostgres)
		}
	default:
		return nil, fmt.Errorf("CS_STORE_BACKEND: недопустимое значение %q, допустимые: json, badger, s3, postgres", cfg.StoreBackend)
	}

	cfg.JournalDir = getEnvDefault("CS_JOURNAL_DIR", "data/journal")

	cfg.AdminUser = getEnvDefault("CS_ADMIN_USER", "")
	cfg.AdminPass = getEnvDefault("CS_ADMIN_PASS", "")
	cfg.SessionSecret = getEnvDefault("CS_SESSION_SECRET", "")

	cfg.SessionTTL, err = getEnvDuration("CS_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CS_SESSION_TTL: %w", err)
	}

	cfg.CookieSecure, err = getEnvBool("CS_COOKIE_SECURE", false)
	if err != nil {
		return nil, fmt.Errorf("CS_COOKIE_SECURE: %w", err)
	}

	cfg.LoginRatePerMinute, err = getEnvInt("CS_LOGIN_RATE_PER_MINUTE", 10)
	if err != nil {
		return nil, fmt.Errorf("CS_LOGIN_RATE_PER_MINUTE: %w", err)
	}
	if cfg.LoginRatePerMinute < 1 {
		return nil, fmt.Errorf("CS_LOGIN_RATE_PER_MINUTE: значение должно быть >= 1")
	}

	// CS_MAX_FILE_SIZE — лимит Bot API на загрузку 50 MB
	cfg.MaxFileSize, err = getEnvInt64("CS_MAX_FILE_SIZE", 50<<20)
	if err != nil {
		return nil, fmt.Errorf("CS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("CS_MAX_FILE_SIZE: значение должно быть положительным")
	}

	cfg.UploadConcurrency, err = getEnvInt("CS_UPLOAD_CONCURRENCY", 3)
	if err != nil {
		return nil, fmt.Errorf("CS_UPLOAD_CONCURRENCY: %w", err)
	}
	cfg.DeleteConcurrency, err = getEnvInt("CS_DELETE_CONCURRENCY", 5)
	if err != nil {
		return nil, fmt.Errorf("CS_DELETE_CONCURRENCY: %w", err)
	}
	if cfg.UploadConcurrency < 1 || cfg.DeleteConcurrency < 1 {
		return nil, fmt.Errorf("CS_UPLOAD_CONCURRENCY, CS_DELETE_CONCURRENCY: значения должны быть >= 1")
	}

	cfg.LinkCacheSize, err = getEnvInt("CS_LINK_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("CS_LINK_CACHE_SIZE: %w", err)
	}
	cfg.LinkCacheTTL, err = getEnvDuration("CS_LINK_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CS_LINK_CACHE_TTL: %w", err)
	}
	// Прямые ссылки Bot API действуют не меньше часа
	if cfg.LinkCacheTTL >= time.Hour {
		return nil, fmt.Errorf("CS_LINK_CACHE_TTL: значение %s должно быть меньше 1h", cfg.LinkCacheTTL)
	}

	cfg.PreviewMaxBytes, err = getEnvInt64("CS_PREVIEW_MAX_BYTES", 1<<20)
	if err != nil {
		return nil, fmt.Errorf("CS_PREVIEW_MAX_BYTES: %w", err)
	}

	cfg.DephealthCheckInterval, err = getEnvDuration("CS_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.TLSCert = getEnvDefault("CS_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("CS_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("CS_TLS_CERT и CS_TLS_KEY задаются только вместе")
	}

	cfg.ShutdownTimeout, err = getEnvDuration("CS_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// ValidateServe проверяет параметры, обязательные только для HTTP-сервера.
func (c *Config) ValidateServe() error {
	if c.AdminUser == "" || c.AdminPass == "" {
		return fmt.Errorf("CS_ADMIN_USER, CS_ADMIN_PASS: обязательны для запуска сервера")
	}
	return nil
}

// TLSEnabled возвращает true, если заданы сертификат и ключ.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	if d < 0 {
		return 0, fmt.Errorf("длительность не может быть отрицательной: %q", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
