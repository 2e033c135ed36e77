// Пакет journal — файловый журнал загрузок.
// Каждая загрузка — отдельный файл {tx_id}.journal.json в CS_JOURNAL_DIR.
// Журнал фиксирует расхождение «файл загружен в канал, но не записан
// локально» (статус orphaned), чтобы оператор мог его устранить.
package journal

import (
	"time"

	"github.com/bigkaa/chanstore/internal/domain/model"
)

// Status — статус записи журнала.
type Status string

const (
	// StatusPending — загрузка начата
	StatusPending Status = "pending"
	// StatusCommitted — файл загружен и записан
	StatusCommitted Status = "committed"
	// StatusRolledBack — загрузка в канал не удалась, расхождения нет
	StatusRolledBack Status = "rolled_back"
	// StatusOrphaned — файл в канале есть, локальной записи нет
	StatusOrphaned Status = "orphaned"
	// StatusAdopted — оператор добавил запись вручную
	StatusAdopted Status = "adopted"
	// StatusDiscarded — оператор удалил сообщение из канала
	StatusDiscarded Status = "discarded"
)

// Finished сообщает, что запись больше не требует внимания.
func (s Status) Finished() bool {
	switch s {
	case StatusCommitted, StatusRolledBack, StatusAdopted, StatusDiscarded:
		return true
	}
	return false
}

// Entry — запись журнала. Хранится как JSON-файл {tx_id}.journal.json.
type Entry struct {
	// TxID — идентификатор транзакции (UUID v4)
	TxID string `json:"tx_id"`

	// FileName — имя загружаемого файла
	FileName string `json:"file_name"`

	Status Status `json:"status"`

	// Record — запись, которую загрузка должна была сохранить.
	// Заполняется для orphaned.
	Record *model.FileRecord `json:"record,omitempty"`

	// Reason — причина отката или расхождения
	Reason string `json:"reason,omitempty"`

	StartedAt time.Time `json:"started_at"`

	// CompletedAt — nil для pending
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func entryFileName(txID string) string {
	return txID + ".journal.json"
}
