// Пакет handlers — HTTP-обработчики Channel Store.
// handler.go — интерфейсы сервисного слоя и общие помощники.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/chanstore/internal/api/errors"
	"github.com/bigkaa/chanstore/internal/domain/model"
	"github.com/bigkaa/chanstore/internal/service"
	"github.com/bigkaa/chanstore/internal/storage/journal"
)

// FileService — операции ядра синхронизации, доступные UI.
type FileService interface {
	IngestBatch(ctx context.Context, files []service.IngestParams) []service.IngestOutcome
	ListFiles(ctx context.Context) ([]model.FileRecord, *service.SyncError)
	GetRecord(ctx context.Context, messageID int64) (*model.FileRecord, *service.SyncError)
	GetLink(ctx context.Context, messageID int64) (string, *service.SyncError)
	ResolveLink(ctx context.Context, fileHandle string) (string, bool)
	ThumbnailLink(ctx context.Context, messageID int64) (string, bool)
	Rename(ctx context.Context, messageID int64, newFileName string) (*model.FileRecord, *service.SyncError)
	BulkDelete(ctx context.Context, ids []int64) (*service.DeleteResult, *service.SyncError)
}

// OrphanService — обслуживание незаписанных загрузок.
type OrphanService interface {
	ListOrphans(ctx context.Context) ([]*journal.Entry, *service.SyncError)
	AdoptOrphan(ctx context.Context, txID string) (*model.FileRecord, *service.SyncError)
	DiscardOrphan(ctx context.Context, txID string) *service.SyncError
}

// Проверка соответствия интерфейсам на этапе компиляции.
var (
	_ FileService   = (*service.SyncService)(nil)
	_ OrphanService = (*service.SyncService)(nil)
)

// writeJSON сериализует тело ответа с заданным статусом.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeSyncError переводит ошибку ядра в стандартный ответ ошибки.
func writeSyncError(w http.ResponseWriter, serr *service.SyncError) {
	apierrors.WriteError(w, serr.StatusCode, serr.Code, serr.Message)
}

// messageIDParam извлекает положительный message_id из пути.
func messageIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "message_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный message_id: %q", raw)
	}
	return id, nil
}

// messageID — идентификатор сообщения в теле запроса.
// UI передаёт его то числом, то строкой из data-атрибута.
type messageID int64

func (m *messageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("message_id должен быть целым числом: %s", data)
	}
	*m = messageID(id)
	return nil
}

// decodeJSON читает тело запроса с ограничением размера.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("некорректный JSON: %w", err)
	}
	return nil
}
