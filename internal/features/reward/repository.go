// Package reward — repository.go выполняет операции с таблицами
// rewards и redemptions.
package reward

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ggloop.io/loyalty-engine/internal/common"
)

// Repository предоставляет методы для работы с каталогом наград.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий наград.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const rewardColumns = `id, title, description, category, point_cost, real_value,
       tier, in_stock, active, created_at`

func scanReward(row pgx.Row) (*Reward, error) {
	var r Reward
	err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.Category, &r.PointCost,
		&r.RealValue, &r.Tier, &r.InStock, &r.Active, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReward добавляет позицию в каталог.
func (r *Repository) CreateReward(ctx context.Context, rw *Reward) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO rewards (title, description, category, point_cost, real_value, tier, in_stock, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, rw.Title, rw.Description, rw.Category, rw.PointCost, rw.RealValue,
		rw.Tier, rw.InStock, rw.Active,
	).Scan(&rw.ID, &rw.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания награды: %w: %w", common.ErrTransientStore, err)
	}
	return nil
}

// GetReward возвращает награду по id.
func (r *Repository) GetReward(ctx context.Context, id string) (*Reward, error) {
	rw, err := scanReward(r.db.QueryRow(ctx, `
		SELECT `+rewardColumns+` FROM rewards WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrRewardNotFound
		}
		return nil, fmt.Errorf("ошибка поиска награды: %w: %w", common.ErrTransientStore, err)
	}
	return rw, nil
}

// ListAffordable возвращает активные награды не дороже maxCost.
func (r *Repository) ListAffordable(ctx context.Context, maxCost int64, limit int) ([]*Reward, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+rewardColumns+`
		FROM rewards
		WHERE active AND point_cost <= $1
		ORDER BY point_cost DESC
		LIMIT $2
	`, maxCost, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога: %w: %w", common.ErrTransientStore, err)
	}
	defer rows.Close()

	var out []*Reward
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования награды: %w", err)
		}
		out = append(out, rw)
	}
	return out, rows.Err()
}

// CreateRedemption фиксирует обмен. Идемпотентна по id: повторная
// запись с тем же id возвращает прежний результат.
func (r *Repository) CreateRedemption(ctx context.Context, rd *Redemption) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO redemptions (id, account_id, reward_id, category, point_cost)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`, rd.ID, rd.AccountID, rd.RewardID, rd.Category, rd.PointCost,
	).Scan(&rd.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Запись уже существует — повтор запроса после сбоя.
		err = r.db.QueryRow(ctx,
			`SELECT created_at FROM redemptions WHERE id = $1`, rd.ID,
		).Scan(&rd.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("ошибка фиксации обмена: %w: %w", common.ErrTransientStore, err)
	}
	return nil
}

// ListRedemptions возвращает обмены аккаунта, новые первыми.
func (r *Repository) ListRedemptions(ctx context.Context, accountID string, limit int) ([]*Redemption, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, reward_id, category, point_cost, created_at
		FROM redemptions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения обменов: %w: %w", common.ErrTransientStore, err)
	}
	defer rows.Close()

	var out []*Redemption
	for rows.Next() {
		var rd Redemption
		if err := rows.Scan(&rd.ID, &rd.AccountID, &rd.RewardID, &rd.Category, &rd.PointCost, &rd.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования обмена: %w", err)
		}
		out = append(out, &rd)
	}
	return out, rows.Err()
}
