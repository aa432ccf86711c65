// Package streak управляет серией ежедневных логинов.
// models.go описывает результат обработки логина и вспомогательные
// расчёты по таблице майлстоунов.
package streak

import (
	"sort"

	"ggloop.io/loyalty-engine/internal/config"
)

// Result — итог обработки одного логина.
type Result struct {
	Streak         int     `json:"streak"`          // Стрик после логина
	LongestStreak  int     `json:"longest_streak"`  // Личный рекорд
	Multiplier     float64 `json:"multiplier"`      // Множитель для прочих начислений
	MilestoneBonus int64   `json:"milestone_bonus"` // Начисленный майлстоун-бонус (0 — нет)
	IsNewRecord    bool    `json:"is_new_record"`   // Логин установил новый рекорд
}

// NextMilestone — информация о ближайшем майлстоуне.
type NextMilestone struct {
	Days          int     `json:"days"`
	DaysRemaining int     `json:"days_remaining"`
	Reward        int64   `json:"reward"`
	Multiplier    float64 `json:"multiplier"`
	IsMax         bool    `json:"is_max"`
}

// nextMilestoneFor находит ближайший майлстоун строго больше current.
func nextMilestoneFor(t *config.Tunables, current int) NextMilestone {
	days := make([]int, 0, len(t.Milestones))
	for d := range t.Milestones {
		days = append(days, d)
	}
	sort.Ints(days)

	for _, d := range days {
		if d > current {
			return NextMilestone{
				Days:          d,
				DaysRemaining: d - current,
				Reward:        t.Milestones[d],
				Multiplier:    t.MultiplierFor(d),
				IsMax:         false,
			}
		}
	}

	// Все майлстоуны позади — показываем последний как максимум.
	last := days[len(days)-1]
	return NextMilestone{
		Days:       last,
		Reward:     t.Milestones[last],
		Multiplier: t.MultiplierFor(last),
		IsMax:      true,
	}
}
