// Package integrity реализует движок оценки поведенческих рисков.
// models.go описывает сигнал, алерт и его жизненный цикл.
package integrity

import "time"

// Статусы алерта. Единственный допустимый переход —
// pending → {dismissed, confirmed, escalated}, выполняется ревьюером.
const (
	StatusPending   = "pending"
	StatusDismissed = "dismissed"
	StatusConfirmed = "confirmed"
	StatusEscalated = "escalated"
)

// Действия ревьюера при разборе алерта.
const (
	ActionDismiss  = "dismiss"
	ActionConfirm  = "confirm"
	ActionEscalate = "escalate"
)

// Signal — входящий поведенческий сигнал. Payload непрозрачен для
// движка: его интерпретирует только скорер соответствующего типа.
type Signal struct {
	AccountID     string         `json:"account_id"`
	DetectionType string         `json:"detection_type"`
	SourceType    string         `json:"source_type"`
	SourceID      string         `json:"source_id"`
	Payload       map[string]any `json:"payload"`
}

// Alert представляет зафиксированную аномалию.
// Алерт никогда не удаляется: после разбора он остаётся для аудита.
type Alert struct {
	ID            string         `db:"id" json:"id"`
	AccountID     string         `db:"account_id" json:"account_id"`
	DetectionType string         `db:"detection_type" json:"detection_type"`
	Severity      string         `db:"severity" json:"severity"`
	RiskScore     int            `db:"risk_score" json:"risk_score"`
	SourceType    string         `db:"source_type" json:"source_type"`
	SourceID      string         `db:"source_id" json:"source_id"`
	Payload       map[string]any `db:"payload" json:"payload,omitempty"`
	Status        string         `db:"status" json:"status"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	ResolvedAt    *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
}

// TypeStats — агрегат по одному типу детекции.
type TypeStats struct {
	DetectionType string  `json:"detection_type"`
	Count         int     `json:"count"`
	AvgScore      float64 `json:"avg_score"`
	HighSeverity  int     `json:"high_severity"` // high + critical
}
