// Package referral — memory.go реализует in-memory хранилище связей.
package referral

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ggloop.io/loyalty-engine/internal/common"
)

// Memory — потокобезопасное in-memory хранилище реферальных связей.
type Memory struct {
	mu         sync.RWMutex
	byReferred map[string]*Link // referredID → связь (уникальность приглашённого)
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{byReferred: make(map[string]*Link)}
}

// Create создаёт связь; приглашённый уже привязан — ErrDuplicateReferral.
func (m *Memory) Create(ctx context.Context, link *Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byReferred[link.ReferredID]; ok {
		return common.ErrDuplicateReferral
	}
	cp := *link
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.CreatedAt = time.Now()
	m.byReferred[cp.ReferredID] = &cp
	link.ID = cp.ID
	link.CreatedAt = cp.CreatedAt
	return nil
}

// GetByReferred возвращает связь или nil.
func (m *Memory) GetByReferred(ctx context.Context, referredID string) (*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.byReferred[referredID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

// ListByReferrer возвращает все связи реферера.
func (m *Memory) ListByReferrer(ctx context.Context, referrerID string) ([]*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Link
	for _, l := range m.byReferred {
		if l.ReferrerID == referrerID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Update сохраняет изменяемые поля связи.
func (m *Memory) Update(ctx context.Context, link *Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.byReferred[link.ReferredID]
	if !ok {
		return common.ErrAccountNotFound
	}
	l.Status = link.Status
	l.Stage = link.Stage
	l.PointsAwarded = link.PointsAwarded
	l.ActivatedAt = link.ActivatedAt
	l.CompletedAt = link.CompletedAt
	return nil
}
