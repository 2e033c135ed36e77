package channel

import (
	"errors"
	"fmt"
	"strings"
)

// messageAbsentPattern — описание ошибки Bot API для уже удалённого сообщения.
// Стабильного кода у этой ошибки нет (error_code — общий 400), поэтому
// распознаётся по тексту.
const messageAbsentPattern = "message to delete not found"

// ErrNoFileHandle — ответ ok:true без распознаваемого файла.
var ErrNoFileHandle = errors.New("неподдерживаемая форма ответа: нет file_id")

// APIError — ответ Bot API с ok:false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Method, e.Code, e.Description)
}

// IsMessageAbsent проверяет, что ошибка означает «сообщение уже отсутствует».
// Для удаления такой исход равнозначен успеху.
func IsMessageAbsent(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Description), messageAbsentPattern)
}

// Describe возвращает текст ошибки для пользователя: description Bot API
// или сообщение транспортной ошибки.
func Describe(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Description != "" {
		return apiErr.Description
	}
	return err.Error()
}
