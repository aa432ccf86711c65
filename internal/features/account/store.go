// Package account — store.go определяет контракт хранилища аккаунтов.
// Реализации: repository.go (PostgreSQL) и memory.go (in-memory).
package account

import (
	"context"
	"time"
)

// Store — операции над записями аккаунтов.
// Изменение кэша баланса здесь намеренно отсутствует: баланс двигает
// только леджер, атомарно вместе с записью транзакции.
type Store interface {
	// Create создаёт запись аккаунта. Повторный вызов — no-op.
	Create(ctx context.Context, id string, subscriptionActive bool) error
	// Get возвращает аккаунт или common.ErrAccountNotFound.
	Get(ctx context.Context, id string) (*Account, error)
	// List возвращает все аккаунты. Используется фоновыми обходами.
	List(ctx context.Context) ([]*Account, error)
	// UpdateLogin записывает результат логина: стрик, рекорд, отметку времени.
	UpdateLogin(ctx context.Context, id string, streak, longest int, at time.Time) error
	// SetSubscription обновляет статус подписки (внешний коллаборатор).
	SetSubscription(ctx context.Context, id string, active bool) error
}
