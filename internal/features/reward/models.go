// Package reward реализует каталог наград и обмен баллов.
// models.go описывает награду и факт обмена.
package reward

import "time"

// Reward — позиция каталога наград.
type Reward struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description,omitempty"`
	Category    string    `db:"category" json:"category"`
	PointCost   int64     `db:"point_cost" json:"point_cost"`
	RealValue   float64   `db:"real_value" json:"real_value"` // Денежная ценность, для ранжирования
	Tier        int       `db:"tier" json:"tier"`
	InStock     bool      `db:"in_stock" json:"in_stock"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Redemption — факт обмена баллов на награду.
// Неизменяем после создания; история обменов питает рекомендации.
type Redemption struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"account_id"`
	RewardID  string    `db:"reward_id" json:"reward_id"`
	Category  string    `db:"category" json:"category"`
	PointCost int64     `db:"point_cost" json:"point_cost"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
