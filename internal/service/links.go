package service

import (
	"context"
	"log/slog"
	"strings"
)

// ResolveLink получает прямую ссылку на файл по file_id.
// Пустой file_id — ("", false) без вызова канала. Любой сбой канала
// даёт ("", false) и пишется в лог как предупреждение; ошибкой операции
// он не считается.
func (s *SyncService) ResolveLink(ctx context.Context, fileHandle string) (string, bool) {
	handle := strings.TrimSpace(fileHandle)
	if handle == "" {
		return "", false
	}

	if link, ok := s.links.Get(handle); ok {
		return link, true
	}

	link, err := s.client.ResolveFileURL(ctx, handle)
	if err != nil {
		s.logger.Warn("Не удалось получить ссылку на файл",
			slog.String("file_id", handle),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	s.links.Set(handle, link)
	return link, true
}

// GetLink находит запись и получает прямую ссылку на её файл.
func (s *SyncService) GetLink(ctx context.Context, messageID int64) (string, *SyncError) {
	rec, serr := s.findRecord(ctx, messageID)
	if serr != nil {
		return "", serr
	}

	link, ok := s.ResolveLink(ctx, rec.FileHandle)
	if !ok {
		return "", remoteError("Не удалось получить ссылку на файл %d", messageID)
	}
	return link, nil
}

// ThumbnailLink получает ссылку на миниатюру. false — миниатюры нет,
// записи нет или ссылка не получена.
func (s *SyncService) ThumbnailLink(ctx context.Context, messageID int64) (string, bool) {
	rec, serr := s.findRecord(ctx, messageID)
	if serr != nil || !rec.HasThumb() {
		return "", false
	}
	return s.ResolveLink(ctx, *rec.ThumbHandle)
}
