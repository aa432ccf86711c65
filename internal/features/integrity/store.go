// Package integrity — store.go определяет контракт хранилища алертов.
package integrity

import "context"

// Store — операции над алертами.
type Store interface {
	// Create сохраняет новый алерт и заполняет ID/CreatedAt.
	Create(ctx context.Context, alert *Alert) error
	// Get возвращает алерт или common.ErrAlertNotFound.
	Get(ctx context.Context, id string) (*Alert, error)
	// List возвращает алерты, опционально отфильтрованные по статусу
	// и аккаунту (пустая строка — без фильтра), новые первыми.
	List(ctx context.Context, status, accountID string, limit int) ([]*Alert, error)
	// UpdateStatus сохраняет результат разбора алерта.
	UpdateStatus(ctx context.Context, alert *Alert) error
	// Stats возвращает агрегаты по типам детекции.
	Stats(ctx context.Context) ([]*TypeStats, error)
}
