// Package challenge — repository.go выполняет операции с таблицей challenges.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ggloop.io/loyalty-engine/internal/common"
)

// Repository предоставляет методы для работы с таблицей challenges.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий челленджей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const challengeColumns = `id, title, requirement_type, target_count, bonus_points,
       starts_at, ends_at, completion_cap, completions, active, created_at`

func scanChallenge(row pgx.Row) (*Challenge, error) {
	var c Challenge
	err := row.Scan(
		&c.ID, &c.Title, &c.RequirementType, &c.TargetCount, &c.BonusPoints,
		&c.StartsAt, &c.EndsAt, &c.CompletionCap, &c.Completions, &c.Active, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create добавляет челлендж.
func (r *Repository) Create(ctx context.Context, c *Challenge) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO challenges (title, requirement_type, target_count, bonus_points,
			starts_at, ends_at, completion_cap, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, c.Title, c.RequirementType, c.TargetCount, c.BonusPoints,
		c.StartsAt, c.EndsAt, c.CompletionCap, c.Active,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания челленджа: %w: %w", common.ErrTransientStore, err)
	}
	return nil
}

// Get возвращает челлендж по id.
func (r *Repository) Get(ctx context.Context, id string) (*Challenge, error) {
	c, err := scanChallenge(r.db.QueryRow(ctx, `
		SELECT `+challengeColumns+` FROM challenges WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("ошибка поиска челленджа: %w: %w", common.ErrTransientStore, err)
	}
	return c, nil
}

// ListActive возвращает челленджи, действующие в момент now.
func (r *Repository) ListActive(ctx context.Context, now time.Time) ([]*Challenge, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE active AND starts_at <= $1 AND ends_at > $1
		ORDER BY ends_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения челленджей: %w: %w", common.ErrTransientStore, err)
	}
	defer rows.Close()

	var out []*Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования челленджа: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReserveCompletion атомарно занимает слот выполнения.
// Условие в UPDATE исключает гонку двух конкурирующих завершений
// за последний слот.
func (r *Repository) ReserveCompletion(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE challenges
		SET completions = completions + 1
		WHERE id = $1 AND (completion_cap = 0 OR completions < completion_cap)
	`, id)
	if err != nil {
		return fmt.Errorf("ошибка занятия слота: %w: %w", common.ErrTransientStore, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return common.ErrChallengeCapReached
	}
	return nil
}

// ReleaseCompletion возвращает занятый впустую слот.
func (r *Repository) ReleaseCompletion(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE challenges SET completions = GREATEST(completions - 1, 0) WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("ошибка возврата слота: %w: %w", common.ErrTransientStore, err)
	}
	return nil
}
