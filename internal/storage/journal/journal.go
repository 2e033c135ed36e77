package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/chanstore/internal/domain/model"
)

const entrySuffix = ".journal.json"

var (
	// ErrNotFound — записи с таким tx_id нет.
	ErrNotFound = errors.New("запись журнала не найдена")
	// ErrInvalidStatus — переход из текущего статуса недопустим.
	ErrInvalidStatus = errors.New("недопустимый статус записи журнала")
)

// Journal — файловый журнал загрузок.
// Загрузка открывает запись pending, затем запись закрывается как
// committed, rolled_back или orphaned. Orphaned-записи закрывает оператор
// (adopted или discarded).
type Journal struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// New создаёт журнал. Проверяет и создаёт директорию,
// если она не существует.
func New(dir string, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию журнала %s: %w", dir, err)
	}

	// Проверяем доступность на запись через temp файл
	testFile := filepath.Join(dir, ".journal_write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o640); err != nil {
		return nil, fmt.Errorf("директория журнала %s недоступна для записи: %w", dir, err)
	}
	os.Remove(testFile)

	return &Journal{
		dir:    dir,
		logger: logger.With(slog.String("component", "journal")),
	}, nil
}

// Start открывает запись pending для загрузки файла fileName.
func (j *Journal) Start(fileName string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := &Entry{
		TxID:      uuid.New().String(),
		FileName:  fileName,
		Status:    StatusPending,
		StartedAt: time.Now().UTC(),
	}

	if err := j.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("не удалось создать запись журнала: %w", err)
	}

	j.logger.Debug("Загрузка начата",
		slog.String("tx_id", entry.TxID),
		slog.String("file_name", fileName),
	)
	return entry, nil
}

// Commit закрывает загрузку как успешную.
func (j *Journal) Commit(txID string) error {
	return j.transition(txID, StatusPending, StatusCommitted, func(*Entry) {})
}

// Rollback закрывает загрузку, которая не дошла до канала.
func (j *Journal) Rollback(txID, reason string) error {
	return j.transition(txID, StatusPending, StatusRolledBack, func(e *Entry) {
		e.Reason = reason
	})
}

// MarkOrphaned фиксирует, что файл загружен в канал, но запись rec
// не сохранена локально.
func (j *Journal) MarkOrphaned(txID string, rec model.FileRecord, reason string) error {
	err := j.transition(txID, StatusPending, StatusOrphaned, func(e *Entry) {
		e.Record = &rec
		e.Reason = reason
	})
	if err == nil {
		j.logger.Warn("Загрузка без локальной записи",
			slog.String("tx_id", txID),
			slog.Int64("message_id", rec.MessageID),
			slog.String("reason", reason),
		)
	}
	return err
}

// Resolve закрывает orphaned-запись статусом adopted или discarded.
func (j *Journal) Resolve(txID string, status Status) error {
	if status != StatusAdopted && status != StatusDiscarded {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	return j.transition(txID, StatusOrphaned, status, func(*Entry) {})
}

// Get читает запись по tx_id.
func (j *Journal) Get(txID string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.readEntry(txID)
}

// Orphans возвращает orphaned-записи, старые первыми.
func (j *Journal) Orphans() ([]*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.scan()
	if err != nil {
		return nil, err
	}

	orphans := []*Entry{}
	for _, e := range entries {
		if e.Status == StatusOrphaned {
			orphans = append(orphans, e)
		}
	}
	sort.Slice(orphans, func(a, b int) bool {
		return orphans[a].StartedAt.Before(orphans[b].StartedAt)
	})
	return orphans, nil
}

// Recover вызывается при старте. Pending-записи (процесс завершился
// посреди загрузки) закрываются как rolled_back: результат загрузки
// неизвестен, оператор видит их в логе. Orphaned-записи логируются.
// Завершённые записи удаляются.
func (j *Journal) Recover() (pending, orphaned int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.scan()
	if err != nil {
		return 0, 0, err
	}

	for _, e := range entries {
		switch e.Status {
		case StatusPending:
			now := time.Now().UTC()
			e.Status = StatusRolledBack
			e.Reason = "процесс прерван во время загрузки"
			e.CompletedAt = &now
			if err := j.writeEntry(e); err != nil {
				j.logger.Warn("Не удалось закрыть прерванную загрузку",
					slog.String("tx_id", e.TxID),
					slog.String("error", err.Error()),
				)
				continue
			}
			pending++
			j.logger.Warn("Обнаружена прерванная загрузка: файл мог остаться в канале без записи",
				slog.String("tx_id", e.TxID),
				slog.String("file_name", e.FileName),
				slog.Time("started_at", e.StartedAt),
			)
		case StatusOrphaned:
			orphaned++
			attrs := []any{
				slog.String("tx_id", e.TxID),
				slog.String("file_name", e.FileName),
			}
			if e.Record != nil {
				attrs = append(attrs, slog.Int64("message_id", e.Record.MessageID))
			}
			j.logger.Warn("Загрузка ожидает решения оператора", attrs...)
		default:
			if !e.Status.Finished() {
				continue
			}
			if err := os.Remove(filepath.Join(j.dir, entryFileName(e.TxID))); err != nil && !errors.Is(err, fs.ErrNotExist) {
				j.logger.Warn("Не удалось удалить завершённую запись журнала",
					slog.String("tx_id", e.TxID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return pending, orphaned, nil
}

// Dir возвращает путь к директории журнала.
func (j *Journal) Dir() string {
	return j.dir
}

func (j *Journal) transition(txID string, from, to Status, mutate func(*Entry)) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry, err := j.readEntry(txID)
	if err != nil {
		return err
	}

	if entry.Status != from {
		return fmt.Errorf("%w: запись %s имеет статус %s, ожидается %s", ErrInvalidStatus, txID, entry.Status, from)
	}

	now := time.Now().UTC()
	mutate(entry)
	entry.Status = to
	entry.CompletedAt = &now

	if err := j.writeEntry(entry); err != nil {
		return fmt.Errorf("не удалось обновить запись журнала %s: %w", txID, err)
	}

	j.logger.Debug("Статус записи журнала изменён",
		slog.String("tx_id", txID),
		slog.String("status", string(to)),
	)
	return nil
}

// scan читает все записи директории. Нечитаемые записи пропускаются.
func (j *Journal) scan() ([]*Entry, error) {
	paths, err := filepath.Glob(filepath.Join(j.dir, "*"+entrySuffix))
	if err != nil {
		return nil, fmt.Errorf("не удалось сканировать директорию журнала: %w", err)
	}

	entries := make([]*Entry, 0, len(paths))
	for _, path := range paths {
		txID := strings.TrimSuffix(filepath.Base(path), entrySuffix)
		entry, err := j.readEntry(txID)
		if err != nil {
			j.logger.Warn("Не удалось прочитать запись журнала",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// writeEntry атомарно записывает запись на диск: temp → fsync → rename.
func (j *Journal) writeEntry(entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}

	targetPath := filepath.Join(j.dir, entryFileName(entry.TxID))
	tmpPath := targetPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

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

	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// readEntry читает запись. tx_id приходит извне и должен быть UUID.
func (j *Journal) readEntry(txID string) (*Entry, error) {
	if _, err := uuid.Parse(txID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, txID)
	}

	data, err := os.ReadFile(filepath.Join(j.dir, entryFileName(txID)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, txID)
		}
		return nil, fmt.Errorf("ошибка чтения записи журнала: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("ошибка десериализации записи журнала: %w", err)
	}
	return &entry, nil
}
