// Package retention — service.go содержит расчёт риска оттока,
// ранжирование рекомендаций и триггеры вовлечения.
package retention

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
	"ggloop.io/loyalty-engine/internal/features/reward"
)

// Балансовые рубежи для триггера points_milestone: попадание в окно
// [рубеж, рубеж+500) — повод напомнить про каталог.
var balanceMilestones = []int64{1000, 2500, 5000, 10000, 25000}

const milestoneWindow = 500

// Service — движок удержания. Только читает; безопасен для
// параллельного использования, слегка устаревшие данные допустимы.
type Service struct {
	accounts account.Store
	rewards  reward.Store
	tunables *config.Tunables
}

// NewService создаёт новый сервис удержания.
func NewService(accounts account.Store, rewards reward.Store, tunables *config.Tunables) *Service {
	return &Service{
		accounts: accounts,
		rewards:  rewards,
		tunables: tunables,
	}
}

// ChurnRisk считает риск оттока аккаунта.
// Независимые взвешенные факторы складываются, итог зажимается
// в [0,100] и классифицируется по полосам уровней.
func (s *Service) ChurnRisk(ctx context.Context, accountID string) (*ChurnRiskProfile, error) {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	redemptions, err := s.rewards.ListRedemptions(ctx, accountID, 1)
	if err != nil {
		return nil, err
	}
	hasRedeemed := len(redemptions) > 0

	w := s.tunables.Churn
	score := 0
	var factors []string

	daysSinceLogin := 999
	if acc.LastLoginAt != nil {
		daysSinceLogin = common.DaysSince(*acc.LastLoginAt, time.Now())
	}
	switch {
	case daysSinceLogin > 14:
		score += w.Recency14Days
		factors = append(factors, "Нет логинов больше 14 дней")
	case daysSinceLogin > 7:
		score += w.Recency7Days
		factors = append(factors, "Нет логинов больше 7 дней")
	case daysSinceLogin > 3:
		score += w.Recency3Days
		factors = append(factors, "Низкая недавняя активность")
	}

	switch {
	case acc.LoginStreak == 0:
		score += w.LostStreak
		factors = append(factors, "Стрик потерян")
	case acc.LoginStreak < 3:
		score += w.LowStreak
		factors = append(factors, "Слабый стрик")
	}

	if !hasRedeemed && acc.Balance > w.IdleBalanceThreshold {
		score += w.IdleBalance
		factors = append(factors, "Много баллов, ни одного обмена")
	}

	if !acc.SubscriptionActive {
		score += w.InactiveSubscription
		factors = append(factors, "Подписка неактивна")
	}

	score = common.Clamp(score, 0, 100)

	var actions []string
	if daysSinceLogin > 7 {
		actions = append(actions, "Письмо возвращения с бонусными баллами")
	}
	if acc.LoginStreak == 0 && acc.LongestStreak > 5 {
		actions = append(actions, "Напоминание о восстановлении стрика")
	}
	if !hasRedeemed && acc.Balance > w.IdleBalanceThreshold {
		actions = append(actions, "Подсветить «Вам уже есть что обменять!»")
	}
	if !acc.SubscriptionActive {
		actions = append(actions, "Кампания реактивации со скидкой на первый месяц")
	}

	return &ChurnRiskProfile{
		AccountID:          accountID,
		RiskLevel:          s.tunables.RiskLevels.SeverityFor(score),
		RiskScore:          score,
		Factors:            factors,
		RecommendedActions: actions,
	}, nil
}

// Recommend возвращает ранжированный топ рекомендаций наград.
//
// Три эвристики наполняют список кандидатов со своими приоритетами:
// «почти накопил» (80–100% баланса), любимая категория по последним
// обменам, лучшая ценность за балл среди доступного. Итог сортируется
// по приоритету, при равенстве дешёвая награда всплывает первой.
func (s *Service) Recommend(ctx context.Context, accountID string) ([]*Recommendation, error) {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.Balance <= 0 {
		return nil, nil
	}

	affordable, err := s.rewards.ListAffordable(ctx, acc.Balance, 20)
	if err != nil {
		return nil, err
	}
	redemptions, err := s.rewards.ListRedemptions(ctx, accountID, 10)
	if err != nil {
		return nil, err
	}

	t := s.tunables.Recommend
	var recs []*Recommendation

	for _, rw := range affordable {
		share := float64(rw.PointCost) / float64(acc.Balance)
		if share >= t.AlmostThereMin {
			recs = append(recs, &Recommendation{
				RewardID:  rw.ID,
				Title:     rw.Title,
				PointCost: rw.PointCost,
				Category:  rw.Category,
				Reason:    "Вы уже можете это забрать",
				Priority:  t.PriorityAlmost,
			})
		}
	}

	if len(redemptions) > 0 {
		preferred := redemptions[0].Category
		added := 0
		for _, rw := range affordable {
			if rw.Category != preferred || added >= 3 {
				continue
			}
			recs = append(recs, &Recommendation{
				RewardID:  rw.ID,
				Title:     rw.Title,
				PointCost: rw.PointCost,
				Category:  rw.Category,
				Reason:    fmt.Sprintf("По вашим обменам в категории %s", preferred),
				Priority:  t.PriorityCategory,
			})
			added++
		}
	}

	byRatio := make([]*reward.Reward, 0, len(affordable))
	for _, rw := range affordable {
		if rw.RealValue > 0 {
			byRatio = append(byRatio, rw)
		}
	}
	sort.Slice(byRatio, func(i, j int) bool {
		return byRatio[i].RealValue/float64(byRatio[i].PointCost) >
			byRatio[j].RealValue/float64(byRatio[j].PointCost)
	})
	for i, rw := range byRatio {
		if i >= 3 {
			break
		}
		recs = append(recs, &Recommendation{
			RewardID:  rw.ID,
			Title:     rw.Title,
			PointCost: rw.PointCost,
			Category:  rw.Category,
			Reason:    "Лучшая ценность за ваши баллы",
			Priority:  t.PriorityBestValue,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority > recs[j].Priority
		}
		return recs[i].PointCost < recs[j].PointCost
	})
	if len(recs) > t.TopN {
		recs = recs[:t.TopN]
	}
	return recs, nil
}

// EngagementTriggers возвращает советы об уведомлениях для аккаунта.
func (s *Service) EngagementTriggers(ctx context.Context, accountID string) ([]*Trigger, error) {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var triggers []*Trigger
	now := time.Now()

	// Стрик под угрозой: до сгорания меньше часа-двух.
	if acc.LastLoginAt != nil && acc.LoginStreak > 0 {
		hours := common.HoursSince(*acc.LastLoginAt, now)
		if hours >= 23 && hours < 48 {
			prio := PriorityHigh
			if acc.LoginStreak >= 7 {
				prio = PriorityUrgent
			}
			triggers = append(triggers, &Trigger{
				AccountID: accountID,
				Type:      TriggerStreakRisk,
				Priority:  prio,
				Message: fmt.Sprintf("Ваш стрик %d %s скоро сгорит! Зайдите, чтобы сохранить его.",
					acc.LoginStreak, common.PluralizeDays(acc.LoginStreak)),
			})
		}
	}

	for _, m := range balanceMilestones {
		if acc.Balance >= m && acc.Balance < m+milestoneWindow {
			triggers = append(triggers, &Trigger{
				AccountID: accountID,
				Type:      TriggerPointsMilestone,
				Priority:  PriorityMedium,
				Message: fmt.Sprintf("У вас уже %s! Посмотрите, что можно обменять.",
					common.FormatPoints(m)),
			})
		}
	}

	profile, err := s.ChurnRisk(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if profile.RiskLevel == "high" || profile.RiskLevel == "critical" {
		triggers = append(triggers, &Trigger{
			AccountID: accountID,
			Type:      TriggerChurnRisk,
			Priority:  PriorityUrgent,
			Message:   "Мы скучаем! Возвращайтесь за специальным бонусом.",
		})
	}

	return triggers, nil
}
