// Package account управляет записями аккаунтов движка.
// models.go описывает структуру аккаунта: кэш баланса, поля стрика,
// статус подписки. Баланс — производная проекция леджера и обязан
// всегда совпадать с суммой транзакций аккаунта.
package account

import "time"

// Account представляет запись аккаунта.
// Изменяется только операциями движка; удаления нет — аккаунт
// деактивируется внешним коллаборатором через статус подписки.
type Account struct {
	ID                 string     `db:"id"`
	Balance            int64      `db:"balance"`              // Кэш баланса (= сумме транзакций леджера)
	TotalEarned        int64      `db:"total_earned"`         // Всего начислено
	TotalSpent         int64      `db:"total_spent"`          // Всего списано
	LoginStreak        int        `db:"login_streak"`         // Текущая серия логинов
	LongestStreak      int        `db:"longest_streak"`       // Личный рекорд
	LastLoginAt        *time.Time `db:"last_login_at"`        // Время последнего логина
	SubscriptionActive bool       `db:"subscription_active"`  // Статус подписки (задаётся извне)
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}
