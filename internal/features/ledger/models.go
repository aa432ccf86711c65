// Package ledger реализует журнал баллов — append-only лог транзакций
// с кэшем баланса на аккаунте. models.go описывает структуру транзакции
// и допустимые теги типов.
package ledger

import "time"

// Transaction представляет одну операцию с баллами.
// Запись неизменяема: журнал — источник истины, кэш баланса аккаунта —
// производная проекция, которая обязана совпадать с суммой транзакций.
type Transaction struct {
	ID           string     `db:"id"`
	AccountID    string     `db:"account_id"`
	Amount       int64      `db:"amount"`        // Со знаком: + начисление, − списание
	Type         string     `db:"type"`          // Тег типа: login_streak, referral_signup, ...
	SourceType   string     `db:"source_type"`   // Тип события-источника (ключ идемпотентности)
	SourceID     string     `db:"source_id"`     // ID события-источника (ключ идемпотентности)
	Description  string     `db:"description"`   // Описание для истории
	BalanceAfter int64      `db:"balance_after"` // Баланс после этой записи
	ExpiresAt    *time.Time `db:"expires_at"`    // Когда начисление сгорает (nil — бессрочно)
	IsExpired    bool       `db:"is_expired"`    // Помечено сгоревшим
	CreatedAt    time.Time  `db:"created_at"`
}

// Допустимые теги типов транзакций.
const (
	TypeLoginStreak             = "login_streak"              // Майлстоун стрика логинов
	TypeReferralSignup          = "referral_signup"           // Бонус рефереру за регистрацию
	TypeReferredBonus           = "referred_bonus"            // Бонус приглашённому за регистрацию
	TypeReferralActivity        = "referral_activity"         // Бонус рефереру за первую активность
	TypeReferralRedemptionShare = "referral_redemption_share" // Доля реферера от первого обмена
	TypeChallengeBonus          = "challenge_bonus"           // Бонус за выполнение челленджа
	TypeRedemption              = "redemption"                // Списание за обмен награды
	TypeManualAdjustment        = "manual_adjustment"         // Ручная корректировка ревьюером
	TypePointsExpired           = "points_expired"            // Сгорание просроченных начислений
)

// Типы событий-источников.
const (
	SourceStreak     = "streak"
	SourceReferral   = "referral"
	SourceChallenge  = "challenge"
	SourceRedemption = "redemption"
	SourceManual     = "manual"
	SourceExpiry     = "expiry"
)

// DedupKey — канонический ключ идемпотентности транзакции:
// (accountID, sourceType, sourceID, type). Повторная доставка того же
// события не должна породить вторую запись.
func (t *Transaction) DedupKey() string {
	return t.AccountID + "|" + t.SourceType + "|" + t.SourceID + "|" + t.Type
}
