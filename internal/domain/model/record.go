// Пакет model — доменные модели Channel Store.
// FileRecord — единая структура записи о файле, используется
// как in-memory представление и как формат хранилища записей на диске.
package model

import (
	"sort"
	"time"
)

// FileRecord — запись о файле, загруженном в канал.
// Имена JSON-полей являются частью формата хранения и не меняются.
type FileRecord struct {
	// FileName — отображаемое имя файла (меняется через rename)
	FileName string `json:"fileName"`

	// MimeType — MIME-тип (best effort: из ответа канала или из загрузки)
	MimeType string `json:"mimetype"`

	// MessageID — идентификатор сообщения в канале, первичный ключ записи
	MessageID int64 `json:"message_id"`

	// FileHandle — непрозрачная ссылка канала на файл (file_id).
	// Нужна для получения прямой ссылки на скачивание.
	FileHandle string `json:"file_id"`

	// ThumbHandle — ссылка на миниатюру. nil сериализуется как null,
	// поле никогда не опускается.
	ThumbHandle *string `json:"thumb_file_id"`

	// CreatedAt — время загрузки в миллисекундах Unix, не меняется
	CreatedAt int64 `json:"date"`
}

// CreatedTime возвращает время загрузки как time.Time (UTC).
func (r *FileRecord) CreatedTime() time.Time {
	return time.UnixMilli(r.CreatedAt).UTC()
}

// HasThumb проверяет наличие миниатюры.
func (r *FileRecord) HasThumb() bool {
	return r.ThumbHandle != nil && *r.ThumbHandle != ""
}

// FindByMessageID возвращает индекс записи с данным messageID или -1.
func FindByMessageID(records []FileRecord, messageID int64) int {
	for i := range records {
		if records[i].MessageID == messageID {
			return i
		}
	}
	return -1
}

// RemoveMessageIDs возвращает записи, чьи messageID не входят в ids,
// и список реально удалённых идентификаторов.
func RemoveMessageIDs(records []FileRecord, ids []int64) ([]FileRecord, []int64) {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	remaining := make([]FileRecord, 0, len(records))
	var removed []int64
	for _, rec := range records {
		if _, ok := drop[rec.MessageID]; ok {
			removed = append(removed, rec.MessageID)
			continue
		}
		remaining = append(remaining, rec)
	}
	return remaining, removed
}

// SortByDateDesc сортирует записи по дате загрузки, новые первыми.
// Порядок коллекции в хранилище смысла не несёт, сортировка нужна UI.
func SortByDateDesc(records []FileRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
}
