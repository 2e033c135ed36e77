package channel

import "encoding/json"

// SentFile — нормализованный результат sendDocument.
type SentFile struct {
	MessageID   int64
	FileHandle  string
	ThumbHandle *string
	// MimeType — тип, сообщённый платформой (может быть пустым)
	MimeType string
	// Raw — исходный result ответа
	Raw json.RawMessage
}

type fileRef struct {
	FileID string `json:"file_id"`
}

type media struct {
	FileID    string   `json:"file_id"`
	MimeType  string   `json:"mime_type"`
	Thumbnail *fileRef `json:"thumbnail"`
	// Старое имя поля миниатюры в Bot API
	Thumb *fileRef `json:"thumb"`
}

type photoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

type message struct {
	MessageID int64       `json:"message_id"`
	Document  *media      `json:"document"`
	Video     *media      `json:"video"`
	Audio     *media      `json:"audio"`
	Animation *media      `json:"animation"`
	Voice     *media      `json:"voice"`
	VideoNote *media      `json:"video_note"`
	Photo     []photoSize `json:"photo"`
}

// normalize приводит сообщение к единой форме. Проверяет варианты
// в порядке document, video, audio, animation, voice, video_note, photo.
// Возвращает false, если файла в сообщении нет.
func normalize(msg *message) (SentFile, bool) {
	out := SentFile{MessageID: msg.MessageID}

	for _, m := range []*media{msg.Document, msg.Video, msg.Audio, msg.Animation, msg.Voice, msg.VideoNote} {
		if m == nil || m.FileID == "" {
			continue
		}
		out.FileHandle = m.FileID
		out.MimeType = m.MimeType
		switch {
		case m.Thumbnail != nil && m.Thumbnail.FileID != "":
			out.ThumbHandle = &m.Thumbnail.FileID
		case m.Thumb != nil && m.Thumb.FileID != "":
			out.ThumbHandle = &m.Thumb.FileID
		}
		return out, true
	}

	// Фото приходит набором размеров: файл — самый большой, миниатюра — самый маленький
	if len(msg.Photo) > 0 {
		largest, smallest := 0, 0
		for i, p := range msg.Photo {
			if area(p) > area(msg.Photo[largest]) {
				largest = i
			}
			if area(p) < area(msg.Photo[smallest]) {
				smallest = i
			}
		}
		if msg.Photo[largest].FileID == "" {
			return out, false
		}
		out.FileHandle = msg.Photo[largest].FileID
		out.MimeType = "image/jpeg"
		if smallest != largest && msg.Photo[smallest].FileID != "" {
			thumb := msg.Photo[smallest].FileID
			out.ThumbHandle = &thumb
		}
		return out, true
	}

	return out, false
}

func area(p photoSize) int64 {
	if p.Width > 0 && p.Height > 0 {
		return int64(p.Width) * int64(p.Height)
	}
	return p.FileSize
}
