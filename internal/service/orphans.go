// orphans.go — обслуживание загрузок, оставшихся без локальной записи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/chanstore/internal/channel"
	"github.com/bigkaa/chanstore/internal/domain/model"
	"github.com/bigkaa/chanstore/internal/storage/journal"
)

// ListOrphans возвращает загрузки в статусе orphaned.
func (s *SyncService) ListOrphans(_ context.Context) ([]*journal.Entry, *SyncError) {
	orphans, err := s.journal.Orphans()
	if err != nil {
		return nil, persistenceError("Не удалось прочитать журнал: %v", err)
	}
	return orphans, nil
}

// orphanEntry читает orphaned-запись журнала с сохранённой записью файла.
func (s *SyncService) orphanEntry(txID string) (*journal.Entry, *SyncError) {
	entry, err := s.journal.Get(txID)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			return nil, notFoundError("Запись журнала %s не найдена", txID)
		}
		return nil, persistenceError("Не удалось прочитать журнал: %v", err)
	}
	if entry.Status != journal.StatusOrphaned {
		return nil, validationError("Запись журнала %s имеет статус %s", txID, entry.Status)
	}
	if entry.Record == nil {
		return nil, validationError("Запись журнала %s не содержит данных файла", txID)
	}
	return entry, nil
}

// AdoptOrphan добавляет запись, сохранённую в журнале, в хранилище записей.
// Если запись с таким message_id уже есть, хранилище не меняется.
func (s *SyncService) AdoptOrphan(ctx context.Context, txID string) (rec *model.FileRecord, serr *SyncError) {
	defer func() { observe("adopt", serr) }()

	entry, serr := s.orphanEntry(txID)
	if serr != nil {
		return nil, serr
	}
	adopted := *entry.Record

	if err := s.insertIfAbsent(ctx, adopted); err != nil {
		return nil, persistenceError("Не удалось сохранить запись: %v", err)
	}

	if err := s.journal.Resolve(txID, journal.StatusAdopted); err != nil {
		return nil, persistenceError("Запись сохранена, но журнал не обновлён: %v", err)
	}

	s.logger.Info("Загрузка без записи восстановлена",
		slog.String("tx_id", txID),
		slog.Int64("message_id", adopted.MessageID),
	)
	return &adopted, nil
}

// DiscardOrphan удаляет сообщение orphaned-загрузки из канала.
// Отсутствующее сообщение считается удалённым.
func (s *SyncService) DiscardOrphan(ctx context.Context, txID string) (serr *SyncError) {
	defer func() { observe("discard", serr) }()

	entry, serr := s.orphanEntry(txID)
	if serr != nil {
		return serr
	}
	messageID := entry.Record.MessageID

	if err := s.client.DeleteMessage(ctx, messageID); err != nil && !channel.IsMessageAbsent(err) {
		return remoteError("%s", channel.Describe(err))
	}

	// Запись могла всё же попасть в хранилище: сообщения больше нет, убираем и её
	if kept, err := s.removeRecords(context.WithoutCancel(ctx), []int64{messageID}); err != nil {
		return persistenceError("Сообщение удалено, но запись %v не удалена: %v", kept, err)
	}

	if err := s.journal.Resolve(txID, journal.StatusDiscarded); err != nil {
		return persistenceError("Сообщение удалено, но журнал не обновлён: %v", err)
	}

	s.logger.Info("Загрузка без записи удалена из канала",
		slog.String("tx_id", txID),
		slog.Int64("message_id", messageID),
	)
	return nil
}

// insertIfAbsent добавляет запись, если её message_id ещё нет.
func (s *SyncService) insertIfAbsent(ctx context.Context, rec model.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("чтение записей: %w", err)
	}
	if model.FindByMessageID(records, rec.MessageID) >= 0 {
		return nil
	}
	return s.store.ReplaceAll(ctx, append(records, rec))
}
