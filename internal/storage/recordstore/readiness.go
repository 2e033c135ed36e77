package recordstore

import (
	"context"
	"fmt"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessChecker — проверка готовности хранилища записей для health endpoint.
type ReadinessChecker struct {
	store Store
}

// NewReadinessChecker создаёт проверку готовности хранилища.
func NewReadinessChecker(store Store) *ReadinessChecker {
	return &ReadinessChecker{store: store}
}

// CheckReady проверяет, что хранилище отвечает: ping для PostgreSQL,
// чтение коллекции для остальных backend'ов.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if p, ok := c.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return "fail", fmt.Sprintf("хранилище записей недоступно: %v", err)
		}
		return "ok", "подключение активно"
	}

	records, err := c.store.LoadAll(ctx)
	if err != nil {
		return "fail", fmt.Sprintf("хранилище записей недоступно: %v", err)
	}
	return "ok", fmt.Sprintf("записей: %d", len(records))
}
