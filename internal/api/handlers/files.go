// files.go — HTTP-обработчики файловых операций UI.
// Upload, List, Link, Thumbnail, Download proxy, Text preview, Rename, Delete.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/bigkaa/chanstore/internal/api/errors"
	"github.com/bigkaa/chanstore/internal/domain/model"
	"github.com/bigkaa/chanstore/internal/service"
)

// multipartMemory — объём формы в памяти, остальное уходит во временные файлы.
const multipartMemory = 32 << 20

// Лимит всего запроса /upload: maxUploadFiles файлов предельного размера
// плюс запас на заголовки частей и поля формы.
const (
	maxUploadFiles    = 20
	multipartOverhead = 64 << 10
)

// placeholderGIF — прозрачный GIF 1×1 для файлов без миниатюры.
var placeholderGIF, _ = base64.StdEncoding.DecodeString("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

// Downloader — потоковое чтение файла по прямой ссылке.
// Тело ответа закрывает вызывающий.
type Downloader interface {
	Download(ctx context.Context, fileURL string) (*http.Response, error)
}

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	svc        FileService
	downloader Downloader
	// maxFileSize — лимит одного файла; больший файл читается до maxFileSize+1
	// байт и отклоняется ядром
	maxFileSize int64
	// previewMaxBytes — лимит текстового предпросмотра
	previewMaxBytes int64
	logger          *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(svc FileService, downloader Downloader, maxFileSize, previewMaxBytes int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		svc:             svc,
		downloader:      downloader,
		maxFileSize:     maxFileSize,
		previewMaxBytes: previewMaxBytes,
		logger:          logger.With(slog.String("component", "files_handler")),
	}
}

// uploadError — ошибка загрузки одного файла в ответе /upload.
type uploadError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// uploadItem — результат загрузки одного файла в ответе /upload.
type uploadItem struct {
	Success  bool              `json:"success"`
	FileName string            `json:"fileName"`
	File     *model.FileRecord `json:"file,omitempty"`
	Data     json.RawMessage   `json:"data,omitempty"`
	Error    *uploadError      `json:"error,omitempty"`
}

// Upload обрабатывает POST /upload.
// Multipart form: files (одно или несколько полей, также files[]), caption (опционально).
// Ответ всегда поэлементный: ошибка одного файла не прерывает остальные.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.uploadRequestLimit()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.WriteError(w, http.StatusRequestEntityTooLarge, apierrors.CodeFileTooLarge,
				fmt.Sprintf("Размер запроса превышает максимум %d байт", limit))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	headers = append(headers, r.MultipartForm.File["files[]"]...)
	if len(headers) == 0 {
		apierrors.ValidationError(w, "Не выбрано ни одного файла")
		return
	}

	caption := r.FormValue("caption")
	params := make([]service.IngestParams, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Ошибка чтения файла %q: %s", fh.Filename, err.Error()))
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, h.maxFileSize+1))
		_ = f.Close()
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Ошибка чтения файла %q: %s", fh.Filename, err.Error()))
			return
		}

		params = append(params, service.IngestParams{
			Data:     data,
			FileName: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Caption:  caption,
		})
	}

	outcomes := h.svc.IngestBatch(r.Context(), params)

	results := make([]uploadItem, 0, len(outcomes))
	for _, o := range outcomes {
		item := uploadItem{FileName: o.FileName}
		if o.Err != nil {
			item.Error = &uploadError{Code: o.Err.Code, Description: o.Err.Message}
		} else {
			rec := o.Result.Record
			item.Success = true
			item.File = &rec
			item.Data = o.Result.Data
		}
		results = append(results, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": results,
	})
}

// uploadRequestLimit — максимальный размер тела /upload.
func (h *FilesHandler) uploadRequestLimit() int64 {
	return h.maxFileSize*maxUploadFiles + multipartOverhead
}

// ListFiles обрабатывает GET /files.
// Возвращает массив записей, новые первыми.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	records, serr := h.svc.ListFiles(r.Context())
	if serr != nil {
		writeSyncError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetLink обрабатывает GET /file/{message_id}.
func (h *FilesHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	id, err := messageIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	link, serr := h.svc.GetLink(r.Context(), id)
	if serr != nil {
		writeSyncError(w, serr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"url":     link,
	})
}

// Thumbnail обрабатывает GET /thumbnail/{message_id}.
// Redirect на миниатюру, иначе прозрачный GIF 1×1.
func (h *FilesHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	if id, err := messageIDParam(r); err == nil {
		if link, ok := h.svc.ThumbnailLink(r.Context(), id); ok {
			http.Redirect(w, r, link, http.StatusFound)
			return
		}
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.Itoa(len(placeholderGIF)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(placeholderGIF)
}

// openRemote находит запись и открывает поток файла из канала.
// При ошибке ответ уже записан и возвращается nil.
func (h *FilesHandler) openRemote(w http.ResponseWriter, r *http.Request) (*model.FileRecord, *http.Response) {
	id, err := messageIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return nil, nil
	}

	rec, serr := h.svc.GetRecord(r.Context(), id)
	if serr != nil {
		writeSyncError(w, serr)
		return nil, nil
	}

	link, ok := h.svc.ResolveLink(r.Context(), rec.FileHandle)
	if !ok {
		apierrors.WriteError(w, http.StatusBadGateway, apierrors.CodeRemoteError, "Не удалось получить ссылку на файл")
		return nil, nil
	}

	resp, err := h.downloader.Download(r.Context(), link)
	if err != nil {
		h.logger.Warn("Ошибка загрузки файла из канала",
			slog.Int64("message_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.WriteError(w, http.StatusBadGateway, apierrors.CodeRemoteError, "Не удалось получить файл из канала")
		return nil, nil
	}
	return rec, resp
}

// DownloadProxy обрабатывает GET /download/proxy/{message_id}.
// Файл передаётся потоком с Content-Disposition: attachment.
func (h *FilesHandler) DownloadProxy(w http.ResponseWriter, r *http.Request) {
	rec, resp := h.openRemote(w, r)
	if resp == nil {
		return
	}
	defer resp.Body.Close()

	contentType := rec.MimeType
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", ContentDisposition(rec.FileName))
	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Debug("Передача файла прервана",
			slog.Int64("message_id", rec.MessageID),
			slog.String("error", err.Error()),
		)
	}
}

// FileContent обрабатывает GET /file/content/{message_id}.
// Текстовый предпросмотр, не более previewMaxBytes байт.
func (h *FilesHandler) FileContent(w http.ResponseWriter, r *http.Request) {
	rec, resp := h.openRemote(w, r)
	if resp == nil {
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.previewMaxBytes+1))
	if err != nil {
		h.logger.Warn("Ошибка чтения содержимого файла",
			slog.Int64("message_id", rec.MessageID),
			slog.String("error", err.Error()),
		)
		apierrors.WriteError(w, http.StatusBadGateway, apierrors.CodeRemoteError, "Не удалось прочитать содержимое файла")
		return
	}

	if int64(len(data)) > h.previewMaxBytes {
		data = data[:h.previewMaxBytes]
		w.Header().Set("X-Content-Truncated", "true")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// renameRequest — тело POST /rename.
type renameRequest struct {
	MessageID   messageID `json:"messageId"`
	NewFileName string    `json:"newFileName"`
}

// Rename обрабатывает POST /rename.
func (h *FilesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rec, serr := h.svc.Rename(r.Context(), int64(req.MessageID), req.NewFileName)
	if serr != nil {
		writeSyncError(w, serr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"file":    rec,
	})
}

// DeleteMultiple обрабатывает POST /delete-multiple.
// Ответ: {"success": [id...], "failure": [{"id", "reason"}...]}.
func (h *FilesHandler) DeleteMultiple(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageIDs json.RawMessage `json:"messageIds"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if len(req.MessageIDs) == 0 || req.MessageIDs[0] != '[' {
		apierrors.ValidationError(w, "Поле messageIds должно быть массивом")
		return
	}

	var parsed []messageID
	if err := json.Unmarshal(req.MessageIDs, &parsed); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный messageIds: %s", err.Error()))
		return
	}

	ids := make([]int64, len(parsed))
	for i, id := range parsed {
		ids[i] = int64(id)
	}
	h.bulkDelete(w, r, ids)
}

// deleteRequest — тело POST /delete.
type deleteRequest struct {
	MessageID messageID `json:"message_id"`
}

// DeleteOne обрабатывает POST /delete — удаление одного файла.
func (h *FilesHandler) DeleteOne(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	h.bulkDelete(w, r, []int64{int64(req.MessageID)})
}

func (h *FilesHandler) bulkDelete(w http.ResponseWriter, r *http.Request, ids []int64) {
	result, serr := h.svc.BulkDelete(r.Context(), ids)
	if serr != nil {
		writeSyncError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ContentDisposition формирует заголовок вложения с именем в UTF-8 (RFC 5987).
func ContentDisposition(fileName string) string {
	var b strings.Builder
	b.WriteString("attachment; filename*=UTF-8''")
	for _, c := range []byte(fileName) {
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

// isAttrChar — символы, допустимые в ext-value без кодирования.
func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
