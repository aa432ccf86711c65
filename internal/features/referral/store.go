// Package referral — store.go определяет контракт хранилища связей.
package referral

import "context"

// Store — операции над реферальными связями.
type Store interface {
	// Create создаёт связь. Если приглашённый уже привязан —
	// common.ErrDuplicateReferral (один реферер на аккаунт, навсегда).
	Create(ctx context.Context, link *Link) error
	// GetByReferred возвращает связь по приглашённому аккаунту
	// или nil, если аккаунт никем не приглашён.
	GetByReferred(ctx context.Context, referredID string) (*Link, error)
	// ListByReferrer возвращает все связи реферера.
	ListByReferrer(ctx context.Context, referrerID string) ([]*Link, error)
	// Update сохраняет статус, этап, счётчик баллов и отметки времени.
	Update(ctx context.Context, link *Link) error
}
