// Package challenge — memory.go реализует in-memory хранилище челленджей.
package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ggloop.io/loyalty-engine/internal/common"
)

// Memory — потокобезопасное in-memory хранилище челленджей.
type Memory struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{challenges: make(map[string]*Challenge)}
}

// Create добавляет челлендж.
func (m *Memory) Create(ctx context.Context, c *Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.CreatedAt = time.Now()
	m.challenges[cp.ID] = &cp
	c.ID = cp.ID
	c.CreatedAt = cp.CreatedAt
	return nil
}

// Get возвращает челлендж по id.
func (m *Memory) Get(ctx context.Context, id string) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[id]
	if !ok {
		return nil, common.ErrChallengeNotFound
	}
	cp := *c
	return &cp, nil
}

// ListActive возвращает челленджи, действующие в момент now.
func (m *Memory) ListActive(ctx context.Context, now time.Time) ([]*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Challenge
	for _, c := range m.challenges {
		if c.InWindow(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ReserveCompletion атомарно занимает слот выполнения.
func (m *Memory) ReserveCompletion(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[id]
	if !ok {
		return common.ErrChallengeNotFound
	}
	if c.CompletionCap > 0 && c.Completions >= c.CompletionCap {
		return common.ErrChallengeCapReached
	}
	c.Completions++
	return nil
}

// ReleaseCompletion возвращает занятый впустую слот.
func (m *Memory) ReleaseCompletion(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[id]
	if !ok {
		return common.ErrChallengeNotFound
	}
	if c.Completions > 0 {
		c.Completions--
	}
	return nil
}
