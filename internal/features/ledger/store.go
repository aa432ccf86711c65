// Package ledger — store.go определяет контракт хранилища журнала.
package ledger

import (
	"context"
	"time"
)

// Store — операции над журналом транзакций.
//
// Append — единственная точка изменения баланса: запись транзакции и
// обновление кэша баланса происходят вместе или не происходят вовсе.
// Частичная запись (строка журнала без обновления кэша или наоборот)
// не должна быть наблюдаемой ни при каком сбое.
type Store interface {
	// Append атомарно добавляет транзакцию и двигает кэш баланса.
	// Возвращает (прежняя запись, false, nil), если ключ идемпотентности
	// уже обработан. Отрицательная сумма, уводящая баланс ниже нуля, —
	// common.ErrInsufficientBalance.
	Append(ctx context.Context, tx *Transaction) (*Transaction, bool, error)
	// History возвращает транзакции аккаунта, новые первыми.
	History(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error)
	// SumAmounts возвращает сумму всех транзакций аккаунта.
	// Инвариант журнала: сумма всегда равна кэшу баланса.
	SumAmounts(ctx context.Context, accountID string) (int64, error)
	// ExpiringPoints — сколько ещё не сгоревших начислений истекает
	// до момента before, и самый ранний срок из них.
	ExpiringPoints(ctx context.Context, accountID string, before time.Time) (int64, *time.Time, error)
	// SweepExpired помечает просроченные начисления всех аккаунтов и
	// списывает их одной компенсирующей записью points_expired на аккаунт.
	// Возвращает суммарно сгоревшие баллы.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
