// Package integrity — repository.go выполняет операции с таблицей
// integrity_alerts. Payload хранится в jsonb.
package integrity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ggloop.io/loyalty-engine/internal/common"
)

// Repository предоставляет методы для работы с таблицей integrity_alerts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий алертов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const alertColumns = `id, account_id, detection_type, severity, risk_score,
       source_type, source_id, payload, status, created_at, resolved_at`

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	var payload []byte
	err := row.Scan(
		&a.ID, &a.AccountID, &a.DetectionType, &a.Severity, &a.RiskScore,
		&a.SourceType, &a.SourceID, &payload, &a.Status, &a.CreatedAt, &a.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &a.Payload); err != nil {
			return nil, fmt.Errorf("ошибка декодирования payload алерта: %w", err)
		}
	}
	return &a, nil
}

// Create сохраняет новый алерт.
func (r *Repository) Create(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert.Payload)
	if err != nil {
		return fmt.Errorf("ошибка кодирования payload алерта: %w", err)
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO integrity_alerts
			(account_id, detection_type, severity, risk_score, source_type, source_id, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, alert.AccountID, alert.DetectionType, alert.Severity, alert.RiskScore,
		alert.SourceType, alert.SourceID, payload, alert.Status,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания алерта: %w: %w", common.ErrTransientStore, err)
	}
	return nil
}

// Get возвращает алерт по id.
func (r *Repository) Get(ctx context.Context, id string) (*Alert, error) {
	a, err := scanAlert(r.db.QueryRow(ctx, `
		SELECT `+alertColumns+` FROM integrity_alerts WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrAlertNotFound
		}
		return nil, fmt.Errorf("ошибка поиска алерта: %w: %w", common.ErrTransientStore, err)
	}
	return a, nil
}

// List возвращает алерты с фильтрами, новые первыми.
func (r *Repository) List(ctx context.Context, status, accountID string, limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+alertColumns+`
		FROM integrity_alerts
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR account_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, status, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения алертов: %w: %w", common.ErrTransientStore, err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования алерта: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// UpdateStatus сохраняет статус и отметку разбора.
func (r *Repository) UpdateStatus(ctx context.Context, alert *Alert) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE integrity_alerts SET status = $2, resolved_at = $3 WHERE id = $1
	`, alert.ID, alert.Status, alert.ResolvedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления алерта: %w: %w", common.ErrTransientStore, err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrAlertNotFound
	}
	return nil
}

// Stats возвращает агрегаты по типам детекции.
func (r *Repository) Stats(ctx context.Context) ([]*TypeStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT detection_type,
		       COUNT(*),
		       AVG(risk_score),
		       COUNT(*) FILTER (WHERE severity IN ('high', 'critical'))
		FROM integrity_alerts
		GROUP BY detection_type
		ORDER BY detection_type
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики алертов: %w: %w", common.ErrTransientStore, err)
	}
	defer rows.Close()

	var out []*TypeStats
	for rows.Next() {
		var st TypeStats
		if err := rows.Scan(&st.DetectionType, &st.Count, &st.AvgScore, &st.HighSeverity); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статистики: %w", err)
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}
