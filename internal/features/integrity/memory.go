// Package integrity — memory.go реализует in-memory хранилище алертов.
package integrity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ggloop.io/loyalty-engine/internal/common"
)

// Memory — потокобезопасное in-memory хранилище алертов.
type Memory struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{alerts: make(map[string]*Alert)}
}

// Create сохраняет новый алерт.
func (m *Memory) Create(ctx context.Context, alert *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *alert
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now()
	m.alerts[cp.ID] = &cp
	alert.ID = cp.ID
	alert.CreatedAt = cp.CreatedAt
	return nil
}

// Get возвращает алерт по id.
func (m *Memory) Get(ctx context.Context, id string) (*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.alerts[id]
	if !ok {
		return nil, common.ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

// List возвращает алерты с фильтрами, новые первыми.
func (m *Memory) List(ctx context.Context, status, accountID string, limit int) ([]*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Alert
	for _, a := range m.alerts {
		if status != "" && a.Status != status {
			continue
		}
		if accountID != "" && a.AccountID != accountID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateStatus сохраняет статус и отметку разбора.
func (m *Memory) UpdateStatus(ctx context.Context, alert *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alert.ID]
	if !ok {
		return common.ErrAlertNotFound
	}
	a.Status = alert.Status
	a.ResolvedAt = alert.ResolvedAt
	return nil
}

// Stats возвращает агрегаты по типам детекции.
func (m *Memory) Stats(ctx context.Context) ([]*TypeStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := make(map[string]*TypeStats)
	sums := make(map[string]int)
	for _, a := range m.alerts {
		st, ok := byType[a.DetectionType]
		if !ok {
			st = &TypeStats{DetectionType: a.DetectionType}
			byType[a.DetectionType] = st
		}
		st.Count++
		sums[a.DetectionType] += a.RiskScore
		if a.Severity == "high" || a.Severity == "critical" {
			st.HighSeverity++
		}
	}

	out := make([]*TypeStats, 0, len(byType))
	for t, st := range byType {
		st.AvgScore = float64(sums[t]) / float64(st.Count)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectionType < out[j].DetectionType })
	return out, nil
}
