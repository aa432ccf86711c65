// Package ledger — memory.go реализует in-memory хранилище журнала.
// Используется тестами и режимом DB_DISABLED. Повторяет семантику
// PostgreSQL-репозитория запись в запись.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/features/account"
)

// Memory — потокобезопасное in-memory хранилище журнала.
// Кэш баланса живёт в хранилище аккаунтов; атомарность пары
// «запись журнала + сдвиг кэша» обеспечивается мьютексом хранилища
// в дополнение к пер-аккаунтной сериализации на уровне сервиса.
type Memory struct {
	mu       sync.RWMutex
	accounts *account.Memory
	txs      map[string][]*Transaction // accountID → транзакции, старые первыми
	dedup    map[string]*Transaction   // DedupKey → запись
}

// NewMemory создаёт хранилище журнала поверх хранилища аккаунтов.
func NewMemory(accounts *account.Memory) *Memory {
	return &Memory{
		accounts: accounts,
		txs:      make(map[string][]*Transaction),
		dedup:    make(map[string]*Transaction),
	}
}

// Append атомарно добавляет транзакцию и двигает кэш баланса.
func (m *Memory) Append(ctx context.Context, tx *Transaction) (*Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.dedup[tx.DedupKey()]; ok {
		cp := *prior
		return &cp, false, nil
	}

	acc, err := m.accounts.Get(ctx, tx.AccountID)
	if err != nil {
		return nil, false, err
	}
	if acc.Balance+tx.Amount < 0 {
		return nil, false, fmt.Errorf("%w: нужно %d, есть %d",
			common.ErrInsufficientBalance, -tx.Amount, acc.Balance)
	}

	newBalance, err := m.accounts.ApplyDelta(tx.AccountID, tx.Amount)
	if err != nil {
		return nil, false, err
	}

	rec := *tx
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.BalanceAfter = newBalance
	rec.CreatedAt = time.Now()

	m.txs[rec.AccountID] = append(m.txs[rec.AccountID], &rec)
	m.dedup[rec.DedupKey()] = &rec

	cp := rec
	return &cp, true, nil
}

// History возвращает транзакции аккаунта, новые первыми.
func (m *Memory) History(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.txs[accountID]
	// Журнал хранится старые-первыми, обходим с конца.
	out := make([]*Transaction, 0, limit)
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *all[i]
		out = append(out, &cp)
	}
	return out, nil
}

// SumAmounts возвращает сумму всех транзакций аккаунта.
func (m *Memory) SumAmounts(ctx context.Context, accountID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum int64
	for _, tx := range m.txs[accountID] {
		sum += tx.Amount
	}
	return sum, nil
}

// ExpiringPoints — не сгоревшие начисления, истекающие до before.
func (m *Memory) ExpiringPoints(ctx context.Context, accountID string, before time.Time) (int64, *time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	var earliest *time.Time
	for _, tx := range m.txs[accountID] {
		if tx.Amount <= 0 || tx.IsExpired || tx.ExpiresAt == nil {
			continue
		}
		if tx.ExpiresAt.Before(before) {
			total += tx.Amount
			if earliest == nil || tx.ExpiresAt.Before(*earliest) {
				e := *tx.ExpiresAt
				earliest = &e
			}
		}
	}
	return total, earliest, nil
}

// SweepExpired помечает просроченные начисления и списывает их
// компенсирующей записью points_expired, сохраняя инвариант
// «баланс = сумма транзакций».
func (m *Memory) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for accountID, txs := range m.txs {
		var expired int64
		for _, tx := range txs {
			if tx.Amount > 0 && !tx.IsExpired && tx.ExpiresAt != nil && tx.ExpiresAt.Before(now) {
				tx.IsExpired = true
				expired += tx.Amount
			}
		}
		if expired == 0 {
			continue
		}

		acc, err := m.accounts.Get(ctx, accountID)
		if err != nil {
			return total, err
		}
		// Сгоревшие, но уже потраченные баллы второй раз не списываем.
		deduct := expired
		if acc.Balance < deduct {
			deduct = acc.Balance
		}
		if deduct <= 0 {
			continue
		}

		newBalance, err := m.accounts.ApplyDelta(accountID, -deduct)
		if err != nil {
			return total, err
		}
		rec := &Transaction{
			ID:           uuid.NewString(),
			AccountID:    accountID,
			Amount:       -deduct,
			Type:         TypePointsExpired,
			SourceType:   SourceExpiry,
			SourceID:     now.Format("2006-01-02"),
			Description:  fmt.Sprintf("Сгорание %s", common.FormatPoints(deduct)),
			BalanceAfter: newBalance,
			CreatedAt:    time.Now(),
		}
		m.txs[accountID] = append(m.txs[accountID], rec)
		m.dedup[rec.DedupKey()] = rec
		total += deduct
	}
	return total, nil
}
