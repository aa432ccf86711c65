// Package challenge реализует временные челленджи с бонусами.
// models.go описывает челлендж и результат его завершения.
package challenge

import "time"

// Challenge — задание с окном действия и бонусом за выполнение.
// Движок не следит за прогрессом: событие завершения приходит
// извне, здесь проверяются только окно и потолок выполнений.
type Challenge struct {
	ID              string    `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	RequirementType string    `db:"requirement_type" json:"requirement_type"` // Например, "wins"
	TargetCount     int       `db:"target_count" json:"target_count"`
	BonusPoints     int64     `db:"bonus_points" json:"bonus_points"`
	StartsAt        time.Time `db:"starts_at" json:"starts_at"`
	EndsAt          time.Time `db:"ends_at" json:"ends_at"` // Окно [StartsAt, EndsAt)
	CompletionCap   int       `db:"completion_cap" json:"completion_cap"` // 0 — без потолка
	Completions     int       `db:"completions" json:"completions"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// InWindow сообщает, действует ли челлендж в момент t.
func (c *Challenge) InWindow(t time.Time) bool {
	return c.Active && !t.Before(c.StartsAt) && t.Before(c.EndsAt)
}

// Result — итог завершения челленджа.
type Result struct {
	ChallengeID string  `json:"challenge_id"`
	Awarded     int64   `json:"awarded"`
	Multiplier  float64 `json:"multiplier"`
	Duplicate   bool    `json:"duplicate"` // Аккаунт уже завершал этот челлендж
}
