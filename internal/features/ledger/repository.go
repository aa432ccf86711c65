// Package ledger — repository.go выполняет операции с таблицей
// ledger_transactions. Запись транзакции и обновление кэша баланса
// выполняются в одной транзакции БД с блокировкой строки аккаунта —
// частичная запись невозможна.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ggloop.io/loyalty-engine/internal/common"
)

// Repository предоставляет методы для работы с журналом в PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий журнала.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const txColumns = `id, account_id, amount, type, source_type, source_id,
       description, balance_after, expires_at, is_expired, created_at`

func scanTx(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.AccountID, &t.Amount, &t.Type, &t.SourceType, &t.SourceID,
		&t.Description, &t.BalanceAfter, &t.ExpiresAt, &t.IsExpired, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Append атомарно добавляет транзакцию и двигает кэш баланса.
func (r *Repository) Append(ctx context.Context, tx *Transaction) (*Transaction, bool, error) {
	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка начала транзакции: %w: %w", common.ErrTransientStore, err)
	}
	defer dbTx.Rollback(ctx)

	// Блокируем строку аккаунта: конкурирующие начисления того же
	// аккаунта сериализуются здесь даже при нескольких инстансах движка.
	var balance int64
	err = dbTx.QueryRow(ctx, `
		SELECT balance FROM accounts WHERE id = $1 FOR UPDATE
	`, tx.AccountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, common.ErrAccountNotFound
		}
		return nil, false, fmt.Errorf("ошибка получения баланса: %w: %w", common.ErrTransientStore, err)
	}

	// Проверка идемпотентности: та же четвёрка ключа — возвращаем прежнюю запись.
	prior, err := scanTx(dbTx.QueryRow(ctx, `
		SELECT `+txColumns+`
		FROM ledger_transactions
		WHERE account_id = $1 AND source_type = $2 AND source_id = $3 AND type = $4
	`, tx.AccountID, tx.SourceType, tx.SourceID, tx.Type))
	if err == nil {
		return prior, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("ошибка проверки дубликата: %w: %w", common.ErrTransientStore, err)
	}

	newBalance := balance + tx.Amount
	if newBalance < 0 {
		return nil, false, fmt.Errorf("%w: нужно %d, есть %d",
			common.ErrInsufficientBalance, -tx.Amount, balance)
	}

	rec := *tx
	rec.BalanceAfter = newBalance
	err = dbTx.QueryRow(ctx, `
		INSERT INTO ledger_transactions
			(account_id, amount, type, source_type, source_id, description, balance_after, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, is_expired, created_at
	`, rec.AccountID, rec.Amount, rec.Type, rec.SourceType, rec.SourceID,
		rec.Description, rec.BalanceAfter, rec.ExpiresAt,
	).Scan(&rec.ID, &rec.IsExpired, &rec.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка записи транзакции: %w: %w", common.ErrTransientStore, err)
	}

	earned, spent := tx.Amount, int64(0)
	if tx.Amount < 0 {
		earned, spent = 0, -tx.Amount
	}
	_, err = dbTx.Exec(ctx, `
		UPDATE accounts
		SET balance = $2, total_earned = total_earned + $3,
		    total_spent = total_spent + $4, updated_at = NOW()
		WHERE id = $1
	`, rec.AccountID, newBalance, earned, spent)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка обновления баланса: %w: %w", common.ErrTransientStore, err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("ошибка коммита: %w: %w", common.ErrTransientStore, err)
	}
	return &rec, true, nil
}

// History возвращает транзакции аккаунта, новые первыми.
func (r *Repository) History(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+txColumns+`
		FROM ledger_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w: %w", common.ErrTransientStore, err)
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// SumAmounts возвращает сумму всех транзакций аккаунта.
func (r *Repository) SumAmounts(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions WHERE account_id = $1
	`, accountID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ошибка суммирования журнала: %w: %w", common.ErrTransientStore, err)
	}
	return sum, nil
}

// ExpiringPoints — не сгоревшие начисления, истекающие до before.
func (r *Repository) ExpiringPoints(ctx context.Context, accountID string, before time.Time) (int64, *time.Time, error) {
	var total int64
	var earliest *time.Time
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0), MIN(expires_at)
		FROM ledger_transactions
		WHERE account_id = $1 AND amount > 0 AND is_expired = FALSE
		  AND expires_at IS NOT NULL AND expires_at < $2
	`, accountID, before).Scan(&total, &earliest)
	if err != nil {
		return 0, nil, fmt.Errorf("ошибка получения сгорающих баллов: %w: %w", common.ErrTransientStore, err)
	}
	return total, earliest, nil
}

// SweepExpired помечает просроченные начисления и списывает их
// компенсирующей записью points_expired на каждый затронутый аккаунт.
func (r *Repository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT account_id
		FROM ledger_transactions
		WHERE amount > 0 AND is_expired = FALSE
		  AND expires_at IS NOT NULL AND expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка поиска просроченных начислений: %w: %w", common.ErrTransientStore, err)
	}
	var accountIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		accountIDs = append(accountIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var total int64
	for _, accountID := range accountIDs {
		deduct, err := r.sweepAccount(ctx, accountID, now)
		if err != nil {
			return total, err
		}
		total += deduct
	}
	return total, nil
}

// sweepAccount обрабатывает один аккаунт в отдельной транзакции БД.
func (r *Repository) sweepAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w: %w", common.ErrTransientStore, err)
	}
	defer dbTx.Rollback(ctx)

	var balance int64
	err = dbTx.QueryRow(ctx, `
		SELECT balance FROM accounts WHERE id = $1 FOR UPDATE
	`, accountID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("аккаунт не найден при сгорании: %w", err)
	}

	var expired int64
	err = dbTx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_transactions
		WHERE account_id = $1 AND amount > 0 AND is_expired = FALSE
		  AND expires_at IS NOT NULL AND expires_at < $2
	`, accountID, now).Scan(&expired)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта просроченных: %w: %w", common.ErrTransientStore, err)
	}
	_, err = dbTx.Exec(ctx, `
		UPDATE ledger_transactions
		SET is_expired = TRUE
		WHERE account_id = $1 AND amount > 0 AND is_expired = FALSE
		  AND expires_at IS NOT NULL AND expires_at < $2
	`, accountID, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка пометки просроченных: %w: %w", common.ErrTransientStore, err)
	}

	// Сгоревшие, но уже потраченные баллы второй раз не списываем.
	deduct := expired
	if balance < deduct {
		deduct = balance
	}
	if deduct <= 0 {
		return 0, dbTx.Commit(ctx)
	}

	newBalance := balance - deduct
	_, err = dbTx.Exec(ctx, `
		INSERT INTO ledger_transactions
			(account_id, amount, type, source_type, source_id, description, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, accountID, -deduct, TypePointsExpired, SourceExpiry, now.Format("2006-01-02"),
		fmt.Sprintf("Сгорание %s", common.FormatPoints(deduct)), newBalance)
	if err != nil {
		return 0, fmt.Errorf("ошибка записи сгорания: %w: %w", common.ErrTransientStore, err)
	}
	_, err = dbTx.Exec(ctx, `
		UPDATE accounts
		SET balance = $2, total_spent = total_spent + $3, updated_at = NOW()
		WHERE id = $1
	`, accountID, newBalance, deduct)
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления баланса: %w: %w", common.ErrTransientStore, err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка коммита: %w: %w", common.ErrTransientStore, err)
	}
	return deduct, nil
}
