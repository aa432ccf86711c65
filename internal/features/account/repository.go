// Package account — repository.go выполняет операции с таблицей accounts.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ggloop.io/loyalty-engine/internal/common"
)

// Repository предоставляет методы для работы с таблицей accounts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий аккаунтов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const accountColumns = `id, balance, total_earned, total_spent, login_streak,
       longest_streak, last_login_at, subscription_active, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Balance, &a.TotalEarned, &a.TotalSpent, &a.LoginStreak,
		&a.LongestStreak, &a.LastLoginAt, &a.SubscriptionActive,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrTransientStore, err)
	}
	return &a, nil
}

// Create создаёт запись аккаунта. Повторный вызов — no-op.
func (r *Repository) Create(ctx context.Context, id string, subscriptionActive bool) error {
	query := `
		INSERT INTO accounts (id, balance, total_earned, total_spent, login_streak,
		                      longest_streak, subscription_active)
		VALUES ($1, 0, 0, 0, 0, 0, $2)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, id, subscriptionActive)
	if err != nil {
		return fmt.Errorf("ошибка создания аккаунта: %w: %w", common.ErrTransientStore, err)
	}
	return nil
}

// Get возвращает аккаунт.
func (r *Repository) Get(ctx context.Context, id string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// List возвращает все аккаунты. Используется фоновыми обходами.
func (r *Repository) List(ctx context.Context) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения аккаунтов: %w: %w", common.ErrTransientStore, err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateLogin записывает результат логина.
func (r *Repository) UpdateLogin(ctx context.Context, id string, streak, longest int, at time.Time) error {
	query := `
		UPDATE accounts
		SET login_streak = $2, longest_streak = $3, last_login_at = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, streak, longest, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления логина: %w: %w", common.ErrTransientStore, err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrAccountNotFound
	}
	return nil
}

// SetSubscription обновляет статус подписки.
func (r *Repository) SetSubscription(ctx context.Context, id string, active bool) error {
	query := `UPDATE accounts SET subscription_active = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("ошибка обновления подписки: %w: %w", common.ErrTransientStore, err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrAccountNotFound
	}
	return nil
}
