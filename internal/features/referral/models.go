// Package referral реализует трёхэтапный реферальный конвейер.
// models.go описывает связь «реферер — приглашённый» и её жизненный цикл.
package referral

import "time"

// Статусы связи. Статус и этап монотонно неубывающие:
// ни один переход не двигает их назад.
const (
	StatusPending   = "pending"
	StatusActivated = "activated"
	StatusCompleted = "completed"
)

// Этапы конвейера.
const (
	StageSignup     = 1 // Регистрация: бонус обоим
	StageActivity   = 2 // Первая активность: бонус рефереру
	StageRedemption = 3 // Первый обмен: доля рефереру, связь завершена
)

// Link представляет реферальную связь.
// На одного приглашённого — ровно одна связь, навсегда.
type Link struct {
	ID            string     `db:"id"`
	ReferrerID    string     `db:"referrer_id"`
	ReferredID    string     `db:"referred_id"`
	Status        string     `db:"status"`
	Stage         int        `db:"stage"`
	PointsAwarded int64      `db:"points_awarded"` // Суммарно начислено по связи (обе стороны)
	CreatedAt     time.Time  `db:"created_at"`
	ActivatedAt   *time.Time `db:"activated_at"`
	CompletedAt   *time.Time `db:"completed_at"`
}

// Stats — агрегат по рефералам одного реферера.
type Stats struct {
	TotalReferred int   `json:"total_referred"`
	Activated     int   `json:"activated"`
	Completed     int   `json:"completed"`
	TotalEarned   int64 `json:"total_earned"`
}
