// Пакет service — бизнес-логика Channel Store.
// sync.go — ядро синхронизации канала и локального хранилища записей.
//
// Каждая изменяющая операция (загрузка, переименование, удаление)
// поддерживает согласованность между сообщениями канала и записями:
// запись существует, только если сообщение в канале считается существующим.
// Секции load-modify-replace сериализуются мьютексом, вызовы канала
// выполняются вне блокировки.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apierrors "github.com/bigkaa/chanstore/internal/api/errors"
	"github.com/bigkaa/chanstore/internal/channel"
	"github.com/bigkaa/chanstore/internal/domain/model"
	"github.com/bigkaa/chanstore/internal/storage/journal"
	"github.com/bigkaa/chanstore/internal/storage/recordstore"
)

// defaultMimeType — тип, если ни платформа, ни загрузка его не сообщили.
const defaultMimeType = "application/octet-stream"

// ChannelClient — операции канала, нужные ядру.
type ChannelClient interface {
	SendDocument(ctx context.Context, fileName string, data []byte, caption string) (*channel.SentFile, error)
	DeleteMessage(ctx context.Context, messageID int64) error
	ResolveFileURL(ctx context.Context, fileHandle string) (string, error)
}

// IngestJournal — журнал загрузок.
type IngestJournal interface {
	Start(fileName string) (*journal.Entry, error)
	Commit(txID string) error
	Rollback(txID, reason string) error
	MarkOrphaned(txID string, rec model.FileRecord, reason string) error
	Orphans() ([]*journal.Entry, error)
	Get(txID string) (*journal.Entry, error)
	Resolve(txID string, status journal.Status) error
}

// Options — параметры ядра из конфигурации.
type Options struct {
	// MaxFileSize — лимит размера загружаемого файла в байтах
	MaxFileSize int64
	// UploadConcurrency, DeleteConcurrency — параллелизм пакетных операций
	UploadConcurrency int
	DeleteConcurrency int
	// LinkCache — кэш прямых ссылок (nil — без кэша)
	LinkCache *LinkCache
}

// SyncService — ядро синхронизации.
type SyncService struct {
	client  ChannelClient
	store   recordstore.Store
	journal IngestJournal
	links   *LinkCache
	opts    Options

	// mu сериализует load-modify-replace над хранилищем записей
	mu sync.Mutex

	now    func() time.Time
	logger *slog.Logger
}

// NewSyncService создаёт ядро синхронизации.
func NewSyncService(client ChannelClient, store recordstore.Store, j IngestJournal, opts Options, logger *slog.Logger) *SyncService {
	if opts.UploadConcurrency < 1 {
		opts.UploadConcurrency = 1
	}
	if opts.DeleteConcurrency < 1 {
		opts.DeleteConcurrency = 1
	}
	return &SyncService{
		client:  client,
		store:   store,
		journal: j,
		links:   opts.LinkCache,
		opts:    opts,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "sync_service")),
	}
}

// --- Загрузка ---

// IngestParams — параметры загрузки одного файла.
type IngestParams struct {
	Data     []byte
	FileName string
	// MimeType — тип из запроса, используется, если платформа его не сообщила
	MimeType string
	// Caption — подпись сообщения (пустая — имя файла)
	Caption string
}

// IngestResult — результат успешной загрузки.
type IngestResult struct {
	Record model.FileRecord `json:"record"`
	// Data — исходный ответ платформы
	Data json.RawMessage `json:"data"`
}

// IngestOutcome — исход загрузки одного файла из пакета.
type IngestOutcome struct {
	FileName string
	Result   *IngestResult
	Err      *SyncError
}

// Ingest загружает файл в канал и добавляет запись.
//
// Поток:
//  1. Валидация (имя, непустые данные, размер)
//  2. Журнал: Start (best effort)
//  3. sendDocument
//  4. Запись: LoadAll → append → ReplaceAll под мьютексом
//  5. Журнал: Commit
//
// Ошибка канала — REMOTE_ERROR, хранилище не трогается.
// Сбой хранилища после успешной отправки — NOT_RECORDED, запись журнала
// переходит в orphaned вместе с несохранённой записью.
func (s *SyncService) Ingest(ctx context.Context, params IngestParams) (result *IngestResult, serr *SyncError) {
	defer func() { observe("ingest", serr) }()

	fileName := strings.TrimSpace(params.FileName)
	if fileName == "" {
		return nil, validationError("Не указано имя файла")
	}
	if len(params.Data) == 0 {
		return nil, validationError("Файл %s пуст", fileName)
	}
	if s.opts.MaxFileSize > 0 && int64(len(params.Data)) > s.opts.MaxFileSize {
		return nil, &SyncError{
			StatusCode: http.StatusRequestEntityTooLarge,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", len(params.Data), s.opts.MaxFileSize),
		}
	}

	txID := s.journalStart(fileName)

	sent, err := s.client.SendDocument(ctx, fileName, params.Data, params.Caption)
	if err != nil {
		reason := channel.Describe(err)
		if errors.Is(err, channel.ErrNoFileHandle) {
			reason = "неподдерживаемая форма ответа платформы: нет file_id"
		}
		s.journalRollback(txID, reason)
		s.logger.Warn("Отправка файла в канал не удалась",
			slog.String("file_name", fileName),
			slog.String("error", reason),
		)
		return nil, remoteError("%s", reason)
	}

	mimeType := sent.MimeType
	if mimeType == "" {
		mimeType = params.MimeType
	}
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	rec := model.FileRecord{
		FileName:    fileName,
		MimeType:    mimeType,
		MessageID:   sent.MessageID,
		FileHandle:  sent.FileHandle,
		ThumbHandle: sent.ThumbHandle,
		CreatedAt:   s.now().UnixMilli(),
	}

	// Сообщение уже в канале: отмена запроса не должна прервать запись
	if err := s.appendRecord(context.WithoutCancel(ctx), rec); err != nil {
		reason := err.Error()
		orphanedIngestsTotal.Inc()
		s.journalOrphaned(txID, rec, reason)
		s.logger.Error("Файл загружен в канал, но не записан локально",
			slog.String("file_name", fileName),
			slog.Int64("message_id", rec.MessageID),
			slog.String("tx_id", txID),
			slog.String("error", reason),
		)
		return nil, &SyncError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeNotRecorded,
			Message:    fmt.Sprintf("Файл загружен в канал, но не записан локально: %s", reason),
		}
	}

	s.journalCommit(txID)
	s.logger.Info("Файл загружен",
		slog.String("file_name", fileName),
		slog.Int64("message_id", rec.MessageID),
	)

	return &IngestResult{Record: rec, Data: sent.Raw}, nil
}

// IngestBatch загружает файлы независимо друг от друга с ограниченным
// параллелизмом. Исходы возвращаются в порядке входа; сбой одного файла
// не влияет на остальные.
func (s *SyncService) IngestBatch(ctx context.Context, files []IngestParams) []IngestOutcome {
	outcomes := make([]IngestOutcome, len(files))

	var g errgroup.Group
	g.SetLimit(s.opts.UploadConcurrency)
	for i := range files {
		g.Go(func() error {
			res, serr := s.Ingest(ctx, files[i])
			outcomes[i] = IngestOutcome{FileName: files[i].FileName, Result: res, Err: serr}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// appendRecord добавляет запись. Запись с тем же message_id заменяется.
func (s *SyncService) appendRecord(ctx context.Context, rec model.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("чтение записей: %w", err)
	}

	if idx := model.FindByMessageID(records, rec.MessageID); idx >= 0 {
		records[idx] = rec
	} else {
		records = append(records, rec)
	}

	if err := s.store.ReplaceAll(ctx, records); err != nil {
		return fmt.Errorf("сохранение записей: %w", err)
	}
	return nil
}

// --- Чтение ---

// ListFiles возвращает все записи, новые первыми.
func (s *SyncService) ListFiles(ctx context.Context) ([]model.FileRecord, *SyncError) {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		s.logger.Error("Ошибка чтения записей", slog.String("error", err.Error()))
		return nil, persistenceError("Не удалось прочитать список файлов: %v", err)
	}
	model.SortByDateDesc(records)
	return records, nil
}

// findRecord ищет запись по message_id.
func (s *SyncService) findRecord(ctx context.Context, messageID int64) (*model.FileRecord, *SyncError) {
	if messageID <= 0 {
		return nil, validationError("Некорректный message_id: %d", messageID)
	}
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, persistenceError("Не удалось прочитать записи: %v", err)
	}
	idx := model.FindByMessageID(records, messageID)
	if idx < 0 {
		return nil, notFoundError("Файл %d не найден", messageID)
	}
	return &records[idx], nil
}

// GetRecord возвращает запись по message_id.
func (s *SyncService) GetRecord(ctx context.Context, messageID int64) (*model.FileRecord, *SyncError) {
	return s.findRecord(ctx, messageID)
}

// --- Переименование ---

// Rename меняет отображаемое имя файла. Сообщение в канале не меняется.
// Отсутствующая запись — NOT_FOUND без записи в хранилище;
// сбой записи — PERSISTENCE_ERROR.
func (s *SyncService) Rename(ctx context.Context, messageID int64, newFileName string) (rec *model.FileRecord, serr *SyncError) {
	defer func() { observe("rename", serr) }()

	name := strings.TrimSpace(newFileName)
	if messageID <= 0 {
		return nil, validationError("Некорректный message_id: %d", messageID)
	}
	if name == "" {
		return nil, validationError("Новое имя файла не может быть пустым")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, persistenceError("Не удалось прочитать записи: %v", err)
	}

	idx := model.FindByMessageID(records, messageID)
	if idx < 0 {
		return nil, notFoundError("Файл %d не найден", messageID)
	}

	records[idx].FileName = name
	if err := s.store.ReplaceAll(ctx, records); err != nil {
		s.logger.Error("Ошибка сохранения после переименования",
			slog.Int64("message_id", messageID),
			slog.String("error", err.Error()),
		)
		return nil, persistenceError("Не удалось сохранить новое имя: %v", err)
	}

	updated := records[idx]
	s.logger.Info("Файл переименован",
		slog.Int64("message_id", messageID),
		slog.String("file_name", name),
	)
	return &updated, nil
}

// --- Удаление ---

// DeleteFailure — идентификатор, который не удалось удалить, и причина.
type DeleteFailure struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// DeleteResult — итог пакетного удаления.
type DeleteResult struct {
	Success []int64         `json:"success"`
	Failure []DeleteFailure `json:"failure"`
}

// BulkDelete удаляет сообщения из канала и соответствующие записи.
// Каждый id обрабатывается независимо; «message to delete not found»
// считается успехом. Записи удаляются только для успешных id.
// Если записи не удалось сохранить, id, чьи записи остались, переходят
// в failure: повтор сойдётся, удаление в канале идемпотентно.
func (s *SyncService) BulkDelete(ctx context.Context, ids []int64) (result *DeleteResult, serr *SyncError) {
	defer func() { observe("delete", serr) }()

	for _, id := range ids {
		if id <= 0 {
			return nil, validationError("Некорректный message_id: %d", id)
		}
	}

	unique := dedupe(ids)
	result = &DeleteResult{Success: []int64{}, Failure: []DeleteFailure{}}
	if len(unique) == 0 {
		return result, nil
	}

	reasons := make([]string, len(unique))
	var g errgroup.Group
	g.SetLimit(s.opts.DeleteConcurrency)
	for i, id := range unique {
		g.Go(func() error {
			err := s.client.DeleteMessage(ctx, id)
			if err == nil || channel.IsMessageAbsent(err) {
				return nil
			}
			reasons[i] = channel.Describe(err)
			if reasons[i] == "" {
				reasons[i] = "неизвестная ошибка"
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range unique {
		if reasons[i] == "" {
			result.Success = append(result.Success, id)
		} else {
			result.Failure = append(result.Failure, DeleteFailure{ID: id, Reason: reasons[i]})
		}
	}

	if len(result.Success) == 0 {
		return result, nil
	}

	// Сообщения уже удалены из канала: отмена запроса не должна прервать запись
	if kept, err := s.removeRecords(context.WithoutCancel(ctx), result.Success); err != nil {
		s.logger.Error("Сообщения удалены из канала, но записи не обновлены",
			slog.Int("count", len(kept)),
			slog.String("error", err.Error()),
		)
		keptSet := make(map[int64]struct{}, len(kept))
		for _, id := range kept {
			keptSet[id] = struct{}{}
		}
		success := []int64{}
		for _, id := range result.Success {
			if _, ok := keptSet[id]; ok {
				result.Failure = append(result.Failure, DeleteFailure{
					ID:     id,
					Reason: fmt.Sprintf("удалено из канала, но запись не удалена: %v", err),
				})
				continue
			}
			success = append(success, id)
		}
		result.Success = success
	}

	s.logger.Info("Пакетное удаление завершено",
		slog.Int("success", len(result.Success)),
		slog.Int("failure", len(result.Failure)),
	)
	return result, nil
}

// removeRecords удаляет записи с данными id. При ошибке возвращает id,
// чьи записи остались в хранилище (при ошибке чтения — все).
func (s *SyncService) removeRecords(ctx context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return ids, fmt.Errorf("чтение записей: %w", err)
	}

	byID := make(map[int64]model.FileRecord, len(records))
	for _, rec := range records {
		byID[rec.MessageID] = rec
	}

	remaining, removed := model.RemoveMessageIDs(records, ids)
	if len(removed) == 0 {
		return nil, nil
	}

	if err := s.store.ReplaceAll(ctx, remaining); err != nil {
		return removed, fmt.Errorf("сохранение записей: %w", err)
	}

	for _, id := range removed {
		rec := byID[id]
		s.links.Delete(rec.FileHandle)
		if rec.HasThumb() {
			s.links.Delete(*rec.ThumbHandle)
		}
	}
	return nil, nil
}

// dedupe убирает повторы, сохраняя порядок первых вхождений.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// --- Журнал (best effort) ---

func (s *SyncService) journalStart(fileName string) string {
	entry, err := s.journal.Start(fileName)
	if err != nil {
		s.logger.Warn("Журнал загрузок недоступен", slog.String("error", err.Error()))
		return ""
	}
	return entry.TxID
}

func (s *SyncService) journalCommit(txID string) {
	if txID == "" {
		return
	}
	if err := s.journal.Commit(txID); err != nil {
		s.logger.Warn("Не удалось закрыть запись журнала", slog.String("tx_id", txID), slog.String("error", err.Error()))
	}
}

func (s *SyncService) journalRollback(txID, reason string) {
	if txID == "" {
		return
	}
	if err := s.journal.Rollback(txID, reason); err != nil {
		s.logger.Warn("Не удалось откатить запись журнала", slog.String("tx_id", txID), slog.String("error", err.Error()))
	}
}

func (s *SyncService) journalOrphaned(txID string, rec model.FileRecord, reason string) {
	if txID == "" {
		return
	}
	if err := s.journal.MarkOrphaned(txID, rec, reason); err != nil {
		s.logger.Error("Не удалось записать расхождение в журнал",
			slog.String("tx_id", txID),
			slog.Int64("message_id", rec.MessageID),
			slog.String("error", err.Error()),
		)
	}
}
