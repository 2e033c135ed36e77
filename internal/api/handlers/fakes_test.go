package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/chanstore/internal/api/errors"
	"github.com/bigkaa/chanstore/internal/domain/model"
	"github.com/bigkaa/chanstore/internal/service"
	"github.com/bigkaa/chanstore/internal/storage/journal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeService — ядро синхронизации в памяти.
type fakeService struct {
	mu sync.Mutex

	records []model.FileRecord
	links   map[string]string
	orphans []*journal.Entry

	// ingested — параметры последнего IngestBatch
	ingested []service.IngestParams
	// deleted — ids последнего BulkDelete
	deleted []int64
	// ingestErr — ошибки загрузки по имени файла
	ingestErr map[string]*service.SyncError
	listErr   *service.SyncError
}

func newFakeService() *fakeService {
	return &fakeService{
		links:     map[string]string{},
		ingestErr: map[string]*service.SyncError{},
	}
}

func (f *fakeService) IngestBatch(_ context.Context, files []service.IngestParams) []service.IngestOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = files

	out := make([]service.IngestOutcome, len(files))
	for i, p := range files {
		out[i].FileName = p.FileName
		if serr := f.ingestErr[p.FileName]; serr != nil {
			out[i].Err = serr
			continue
		}
		rec := model.FileRecord{
			FileName:   p.FileName,
			MimeType:   p.MimeType,
			MessageID:  int64(501 + i),
			FileHandle: "AgAD",
			CreatedAt:  1700000000000,
		}
		f.records = append(f.records, rec)
		out[i].Result = &service.IngestResult{Record: rec, Data: json.RawMessage(`{"message_id":501}`)}
	}
	return out
}

func (f *fakeService) ListFiles(_ context.Context) ([]model.FileRecord, *service.SyncError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.FileRecord, len(f.records))
	copy(out, f.records)
	model.SortByDateDesc(out)
	return out, nil
}

func (f *fakeService) GetRecord(_ context.Context, messageID int64) (*model.FileRecord, *service.SyncError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := model.FindByMessageID(f.records, messageID)
	if idx < 0 {
		return nil, &service.SyncError{StatusCode: http.StatusNotFound, Code: apierrors.CodeNotFound, Message: "нет записи"}
	}
	rec := f.records[idx]
	return &rec, nil
}

func (f *fakeService) GetLink(ctx context.Context, messageID int64) (string, *service.SyncError) {
	rec, serr := f.GetRecord(ctx, messageID)
	if serr != nil {
		return "", serr
	}
	link, ok := f.ResolveLink(ctx, rec.FileHandle)
	if !ok {
		return "", &service.SyncError{StatusCode: http.StatusBadGateway, Code: apierrors.CodeRemoteError, Message: "нет ссылки"}
	}
	return link, nil
}

func (f *fakeService) ResolveLink(_ context.Context, fileHandle string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[fileHandle]
	return link, ok
}

func (f *fakeService) ThumbnailLink(ctx context.Context, messageID int64) (string, bool) {
	rec, serr := f.GetRecord(ctx, messageID)
	if serr != nil || !rec.HasThumb() {
		return "", false
	}
	return f.ResolveLink(ctx, *rec.ThumbHandle)
}

func (f *fakeService) Rename(_ context.Context, messageID int64, newFileName string) (*model.FileRecord, *service.SyncError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageID <= 0 || strings.TrimSpace(newFileName) == "" {
		return nil, &service.SyncError{StatusCode: http.StatusBadRequest, Code: apierrors.CodeValidationError, Message: "некорректные параметры"}
	}
	idx := model.FindByMessageID(f.records, messageID)
	if idx < 0 {
		return nil, &service.SyncError{StatusCode: http.StatusNotFound, Code: apierrors.CodeNotFound, Message: "нет записи"}
	}
	f.records[idx].FileName = newFileName
	rec := f.records[idx]
	return &rec, nil
}

func (f *fakeService) BulkDelete(_ context.Context, ids []int64) (*service.DeleteResult, *service.SyncError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = ids
	for _, id := range ids {
		if id <= 0 {
			return nil, &service.SyncError{StatusCode: http.StatusBadRequest, Code: apierrors.CodeValidationError, Message: "некорректный id"}
		}
	}
	result := &service.DeleteResult{Success: []int64{}, Failure: []service.DeleteFailure{}}
	for _, id := range ids {
		if id == 13 {
			result.Failure = append(result.Failure, service.DeleteFailure{ID: id, Reason: "Bad Request: message can't be deleted"})
			continue
		}
		result.Success = append(result.Success, id)
	}
	f.records, _ = model.RemoveMessageIDs(f.records, result.Success)
	return result, nil
}

func (f *fakeService) ListOrphans(_ context.Context) ([]*journal.Entry, *service.SyncError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orphans, nil
}

func (f *fakeService) AdoptOrphan(_ context.Context, txID string) (*model.FileRecord, *service.SyncError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.orphans {
		if e.TxID == txID && e.Record != nil {
			f.records = append(f.records, *e.Record)
			return e.Record, nil
		}
	}
	return nil, &service.SyncError{StatusCode: http.StatusNotFound, Code: apierrors.CodeNotFound, Message: "нет записи журнала"}
}

func (f *fakeService) DiscardOrphan(_ context.Context, txID string) *service.SyncError {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.orphans {
		if e.TxID == txID {
			f.orphans = append(f.orphans[:i], f.orphans[i+1:]...)
			return nil
		}
	}
	return &service.SyncError{StatusCode: http.StatusNotFound, Code: apierrors.CodeNotFound, Message: "нет записи журнала"}
}

// fakeDownloader отдаёт содержимое по ссылке.
type fakeDownloader struct {
	files map[string]string
}

func (d *fakeDownloader) Download(_ context.Context, fileURL string) (*http.Response, error) {
	body, ok := d.files[fileURL]
	if !ok {
		return nil, errors.New("статус 404")
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": []string{"application/octet-stream"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}, nil
}

// serve выполняет запрос через chi-маршрут, чтобы работали URL-параметры.
func serve(method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.MethodFunc(method, pattern, h)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(rec *httptest.ResponseRecorder, dst any) error {
	return json.Unmarshal(rec.Body.Bytes(), dst)
}
