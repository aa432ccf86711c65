// Package account — memory.go реализует in-memory хранилище аккаунтов.
// Используется тестами и режимом DB_DISABLED.
package account

import (
	"context"
	"sync"
	"time"

	"ggloop.io/loyalty-engine/internal/common"
)

// Memory — потокобезопасное in-memory хранилище аккаунтов.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*Account)}
}

// Create создаёт запись аккаунта. Повторный вызов — no-op.
func (m *Memory) Create(ctx context.Context, id string, subscriptionActive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[id]; ok {
		return nil
	}
	now := time.Now()
	m.accounts[id] = &Account{
		ID:                 id,
		SubscriptionActive: subscriptionActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return nil
}

// Get возвращает копию аккаунта.
func (m *Memory) Get(ctx context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// List возвращает копии всех аккаунтов.
func (m *Memory) List(ctx context.Context) ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateLogin записывает результат логина.
func (m *Memory) UpdateLogin(ctx context.Context, id string, streak, longest int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return common.ErrAccountNotFound
	}
	t := at
	a.LoginStreak = streak
	a.LongestStreak = longest
	a.LastLoginAt = &t
	a.UpdatedAt = time.Now()
	return nil
}

// SetSubscription обновляет статус подписки.
func (m *Memory) SetSubscription(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return common.ErrAccountNotFound
	}
	a.SubscriptionActive = active
	a.UpdatedAt = time.Now()
	return nil
}

// ApplyDelta атомарно сдвигает кэш баланса и счётчики earned/spent.
// Вызывается ТОЛЬКО леджером вместе с записью транзакции.
func (m *Memory) ApplyDelta(id string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return 0, common.ErrAccountNotFound
	}
	a.Balance += delta
	if delta >= 0 {
		a.TotalEarned += delta
	} else {
		a.TotalSpent += -delta
	}
	a.UpdatedAt = time.Now()
	return a.Balance, nil
}
