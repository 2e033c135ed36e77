// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"fmt"
	"net/http"

	apierrors "github.com/bigkaa/chanstore/internal/api/errors"
)

// SyncError — ошибка операции синхронизации с HTTP-кодом.
// Сервис возвращает только такие ошибки, сырые ошибки наружу не выходят.
type SyncError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func validationError(format string, args ...any) *SyncError {
	return &SyncError{StatusCode: http.StatusBadRequest, Code: apierrors.CodeValidationError, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...any) *SyncError {
	return &SyncError{StatusCode: http.StatusNotFound, Code: apierrors.CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func remoteError(format string, args ...any) *SyncError {
	return &SyncError{StatusCode: http.StatusBadGateway, Code: apierrors.CodeRemoteError, Message: fmt.Sprintf(format, args...)}
}

func persistenceError(format string, args ...any) *SyncError {
	return &SyncError{StatusCode: http.StatusInternalServerError, Code: apierrors.CodePersistenceError, Message: fmt.Sprintf(format, args...)}
}
