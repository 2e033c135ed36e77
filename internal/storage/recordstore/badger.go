package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"

	"github.com/bigkaa/chanstore/internal/domain/model"
)

// badgerKey — ключ, под которым хранится вся коллекция.
var badgerKey = []byte("messages")

// Badger — коллекция записей под одним ключом встроенной KV-базы.
type Badger struct {
	db *badger.DB
}

// OpenBadger открывает (или создаёт) базу в директории dir.
// Пустая dir — база в памяти (для тестов).
func OpenBadger(dir string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("открытие badger %s: %w", dir, err)
	}

	logger.Debug("Badger открыт", slog.String("dir", dir))
	return &Badger{db: db}, nil
}

// LoadAll читает ключ messages. Отсутствующий ключ — пустая коллекция.
func (s *Badger) LoadAll(_ context.Context) ([]model.FileRecord, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return []model.FileRecord{}, nil
		}
		return nil, fmt.Errorf("чтение badger: %w", err)
	}

	return decodeRecords(data)
}

// ReplaceAll записывает коллекцию одной транзакцией.
func (s *Badger) ReplaceAll(ctx context.Context, records []model.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeRecords(records)
	if err != nil {
		return err
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey, data)
	}); err != nil {
		return fmt.Errorf("запись badger: %w", err)
	}
	return nil
}

// Close закрывает базу.
func (s *Badger) Close() error {
	return s.db.Close()
}
