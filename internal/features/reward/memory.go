// Package reward — memory.go реализует in-memory хранилище каталога.
package reward

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ggloop.io/loyalty-engine/internal/common"
)

// Memory — потокобезопасное in-memory хранилище наград и обменов.
type Memory struct {
	mu          sync.RWMutex
	rewards     map[string]*Reward
	redemptions map[string][]*Redemption // accountID → обмены, старые первыми
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{
		rewards:     make(map[string]*Reward),
		redemptions: make(map[string][]*Redemption),
	}
}

// CreateReward добавляет позицию в каталог.
func (m *Memory) CreateReward(ctx context.Context, r *Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.CreatedAt = time.Now()
	m.rewards[cp.ID] = &cp
	r.ID = cp.ID
	r.CreatedAt = cp.CreatedAt
	return nil
}

// GetReward возвращает награду по id.
func (m *Memory) GetReward(ctx context.Context, id string) (*Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rewards[id]
	if !ok {
		return nil, common.ErrRewardNotFound
	}
	cp := *r
	return &cp, nil
}

// ListAffordable возвращает активные награды не дороже maxCost.
func (m *Memory) ListAffordable(ctx context.Context, maxCost int64, limit int) ([]*Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Reward
	for _, r := range m.rewards {
		if !r.Active || r.PointCost > maxCost {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PointCost > out[j].PointCost })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateRedemption фиксирует обмен. Идемпотентна по id: повторная
// запись с тем же id возвращает прежний результат.
func (m *Memory) CreateRedemption(ctx context.Context, r *Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID != "" {
		for _, existing := range m.redemptions[r.AccountID] {
			if existing.ID == r.ID {
				*r = *existing
				return nil
			}
		}
	}

	cp := *r
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.CreatedAt = time.Now()
	m.redemptions[cp.AccountID] = append(m.redemptions[cp.AccountID], &cp)
	r.ID = cp.ID
	r.CreatedAt = cp.CreatedAt
	return nil
}

// ListRedemptions возвращает обмены аккаунта, новые первыми.
func (m *Memory) ListRedemptions(ctx context.Context, accountID string, limit int) ([]*Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.redemptions[accountID]
	var out []*Redemption
	for i := len(all) - 1; i >= 0; i-- {
		cp := *all[i]
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
