package recordstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bigkaa/chanstore/internal/domain/model"
)

// JSONFile — коллекция записей в одном JSON-файле.
// Запись атомарная: temp → fsync → rename.
type JSONFile struct {
	path string
}

// NewJSONFile создаёт хранилище в файле path. Файл может отсутствовать.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// LoadAll читает файл. Отсутствующий файл — пустая коллекция.
func (s *JSONFile) LoadAll(_ context.Context) ([]model.FileRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.FileRecord{}, nil
		}
		return nil, fmt.Errorf("ошибка чтения %s: %w", s.path, err)
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return records, nil
}

// ReplaceAll атомарно перезаписывает файл.
func (s *JSONFile) ReplaceAll(ctx context.Context, records []model.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeRecords(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	// Уникальное имя: файл может писать и другой процесс (CLI рядом с сервером)
	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Close ничего не делает: файл открывается на время операции.
func (s *JSONFile) Close() error {
	return nil
}
