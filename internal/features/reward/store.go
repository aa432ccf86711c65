// Package reward — store.go определяет контракт хранилища наград.
package reward

import "context"

// Store — операции над каталогом наград и обменами.
type Store interface {
	// CreateReward добавляет позицию в каталог.
	CreateReward(ctx context.Context, r *Reward) error
	// GetReward возвращает награду или common.ErrRewardNotFound.
	GetReward(ctx context.Context, id string) (*Reward, error)
	// ListAffordable возвращает активные награды не дороже maxCost,
	// дорогие первыми.
	ListAffordable(ctx context.Context, maxCost int64, limit int) ([]*Reward, error)
	// CreateRedemption фиксирует обмен. Идемпотентна по id:
	// повторная запись с тем же id возвращает прежний результат.
	CreateRedemption(ctx context.Context, r *Redemption) error
	// ListRedemptions возвращает обмены аккаунта, новые первыми.
	ListRedemptions(ctx context.Context, accountID string, limit int) ([]*Redemption, error)
}
