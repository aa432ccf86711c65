// Package challenge — store.go определяет контракт хранилища челленджей.
package challenge

import (
	"context"
	"time"
)

// Store — операции над челленджами.
type Store interface {
	// Create добавляет челлендж.
	Create(ctx context.Context, c *Challenge) error
	// Get возвращает челлендж или common.ErrChallengeNotFound.
	Get(ctx context.Context, id string) (*Challenge, error)
	// ListActive возвращает челленджи, действующие в момент now.
	ListActive(ctx context.Context, now time.Time) ([]*Challenge, error)
	// ReserveCompletion атомарно занимает слот выполнения.
	// Потолок исчерпан — common.ErrChallengeCapReached.
	ReserveCompletion(ctx context.Context, id string) error
	// ReleaseCompletion возвращает слот, занятый впустую
	// (например, при дубликате начисления).
	ReleaseCompletion(ctx context.Context, id string) error
}
