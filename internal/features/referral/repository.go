// Package referral — repository.go выполняет операции с таблицей referrals.
package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ggloop.io/loyalty-engine/internal/common"
)

// Repository предоставляет методы для работы с таблицей referrals.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий связей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const linkColumns = `id, referrer_id, referred_id, status, stage, points_awarded,
       created_at, activated_at, completed_at`

func scanLink(row pgx.Row) (*Link, error) {
	var l Link
	err := row.Scan(
		&l.ID, &l.ReferrerID, &l.ReferredID, &l.Status, &l.Stage,
		&l.PointsAwarded, &l.CreatedAt, &l.ActivatedAt, &l.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create создаёт связь. Уникальный индекс по referred_id гарантирует
// «один реферер на приглашённого» и при конкурирующих регистрациях.
func (r *Repository) Create(ctx context.Context, link *Link) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO referrals (referrer_id, referred_id, status, stage, points_awarded, activated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, link.ReferrerID, link.ReferredID, link.Status, link.Stage,
		link.PointsAwarded, link.ActivatedAt,
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrDuplicateReferral
		}
		return fmt.Errorf("ошибка создания связи: %w: %w", common.ErrTransientStore, err)
	}
	return nil
}

// GetByReferred возвращает связь по приглашённому или nil.
func (r *Repository) GetByReferred(ctx context.Context, referredID string) (*Link, error) {
	l, err := scanLink(r.db.QueryRow(ctx, `
		SELECT `+linkColumns+` FROM referrals WHERE referred_id = $1
	`, referredID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска связи: %w: %w", common.ErrTransientStore, err)
	}
	return l, nil
}

// ListByReferrer возвращает все связи реферера.
func (r *Repository) ListByReferrer(ctx context.Context, referrerID string) ([]*Link, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+linkColumns+` FROM referrals WHERE referrer_id = $1 ORDER BY created_at
	`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения связей: %w: %w", common.ErrTransientStore, err)
	}
	defer rows.Close()

	var links []*Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования связи: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Update сохраняет изменяемые поля связи.
func (r *Repository) Update(ctx context.Context, link *Link) error {
	_, err := r.db.Exec(ctx, `
		UPDATE referrals
		SET status = $2, stage = $3, points_awarded = $4,
		    activated_at = $5, completed_at = $6
		WHERE id = $1
	`, link.ID, link.Status, link.Stage, link.PointsAwarded,
		link.ActivatedAt, link.CompletedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления связи: %w: %w", common.ErrTransientStore, err)
	}
	return nil
}
