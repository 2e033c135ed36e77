// Пакет recordstore — хранилище записей о файлах.
// Коллекция читается и перезаписывается целиком (LoadAll/ReplaceAll).
// Backend'ы: JSON-файл, Badger, объект S3, таблица PostgreSQL.
// Кэша между вызовами нет: каждый LoadAll читает актуальное состояние.
package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bigkaa/chanstore/internal/config"
	"github.com/bigkaa/chanstore/internal/domain/model"
)

// Store — хранилище всей коллекции записей.
type Store interface {
	// LoadAll возвращает все записи. Пустое хранилище (ничего не записано)
	// даёт пустой срез без ошибки. Сбой чтения или декодирования — ошибка.
	LoadAll(ctx context.Context) ([]model.FileRecord, error)

	// ReplaceAll атомарно заменяет всю коллекцию.
	// Ошибка означает, что запись не применена.
	ReplaceAll(ctx context.Context, records []model.FileRecord) error

	// Close освобождает ресурсы backend'а.
	Close() error
}

// Open создаёт backend, выбранный в конфигурации.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	logger = logger.With(slog.String("component", "record_store"), slog.String("backend", cfg.StoreBackend))

	var (
		store Store
		err   error
	)
	switch cfg.StoreBackend {
	case config.StoreJSON:
		store = NewJSONFile(cfg.StorePath)
	case config.StoreBadger:
		store, err = OpenBadger(cfg.BadgerDir, logger)
	case config.StoreS3:
		store, err = NewS3(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Key:       cfg.S3Key,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case config.StorePostgres:
		store, err = OpenPostgres(ctx, cfg.DatabaseDSN, logger)
	default:
		return nil, fmt.Errorf("неизвестный backend хранилища записей: %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Хранилище записей открыто")
	return store, nil
}

// encodeRecords сериализует коллекцию в формат хранения (JSON-массив с отступами).
// nil сериализуется как пустой массив.
func encodeRecords(records []model.FileRecord) ([]byte, error) {
	if records == nil {
		records = []model.FileRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации записей: %w", err)
	}
	return data, nil
}

// decodeRecords десериализует коллекцию. Пустые данные и null — пустая коллекция.
func decodeRecords(data []byte) ([]model.FileRecord, error) {
	records := []model.FileRecord{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("ошибка десериализации записей: %w", err)
	}
	if records == nil {
		records = []model.FileRecord{}
	}
	return records, nil
}
