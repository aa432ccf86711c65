package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
	"ggloop.io/loyalty-engine/internal/features/reward"
)

func newTestService(t *testing.T) (*Service, *account.Memory, *reward.Memory) {
	t.Helper()
	accounts := account.NewMemory()
	rewards := reward.NewMemory()
	svc := NewService(accounts, rewards, config.DefaultTunables())
	return svc, accounts, rewards
}

func TestChurnRiskIdleAccount(t *testing.T) {
	svc, accounts, _ := newTestService(t)
	ctx := context.Background()

	// 15 дней без логина, стрик потерян, подписка неактивна:
	// 40 + 20 + 35 = 95 → critical.
	require.NoError(t, accounts.Create(ctx, "idle", false))
	require.NoError(t, accounts.UpdateLogin(ctx, "idle", 0, 6, time.Now().Add(-15*24*time.Hour)))

	profile, err := svc.ChurnRisk(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, 95, profile.RiskScore)
	assert.Equal(t, "critical", profile.RiskLevel)
	assert.Contains(t, profile.Factors, "Нет логинов больше 14 дней")
	assert.Contains(t, profile.Factors, "Стрик потерян")
	assert.Contains(t, profile.Factors, "Подписка неактивна")
	assert.Contains(t, profile.RecommendedActions, "Напоминание о восстановлении стрика")
}

func TestChurnRiskScoreClamped(t *testing.T) {
	svc, accounts, _ := newTestService(t)
	ctx := context.Background()

	// Все факторы разом: 40 + 20 + 15 + 35 = 110 → зажимается до 100.
	require.NoError(t, accounts.Create(ctx, "worst", false))
	require.NoError(t, accounts.UpdateLogin(ctx, "worst", 0, 0, time.Now().Add(-30*24*time.Hour)))
	_, err := accounts.ApplyDelta("worst", 6000)
	require.NoError(t, err)

	profile, err := svc.ChurnRisk(ctx, "worst")
	require.NoError(t, err)
	assert.Equal(t, 100, profile.RiskScore)
	assert.Equal(t, "critical", profile.RiskLevel)
}

func TestChurnRiskHealthyAccount(t *testing.T) {
	svc, accounts, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, accounts.Create(ctx, "ok", true))
	require.NoError(t, accounts.UpdateLogin(ctx, "ok", 10, 10, time.Now()))

	profile, err := svc.ChurnRisk(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, 0, profile.RiskScore)
	assert.Equal(t, "low", profile.RiskLevel)
	assert.Empty(t, profile.Factors)
}

func TestRecommendOrderingAndTies(t *testing.T) {
	svc, accounts, rewards := newTestService(t)
	ctx := context.Background()

	require.NoError(t, accounts.Create(ctx, "acc", true))
	_, err := accounts.ApplyDelta("acc", 1000)
	require.NoError(t, err)

	mk := func(id, title string, cost int64, value float64) {
		require.NoError(t, rewards.CreateReward(ctx, &reward.Reward{
			ID: id, Title: title, Category: "gift-cards",
			PointCost: cost, RealValue: value, InStock: true, Active: true,
		}))
	}
	mk("a", "Карта на 900", 900, 0)
	mk("b", "Карта на 850", 850, 0)
	mk("c", "Карта на 500", 500, 10)
	mk("d", "Стикеры", 100, 5)

	recs, err := svc.Recommend(ctx, "acc")
	require.NoError(t, err)
	require.Len(t, recs, 4)

	// «Почти накопил» (прио 100) выше лучшей ценности (прио 70);
	// при равном приоритете дешёвая награда первой.
	assert.Equal(t, "b", recs[0].RewardID)
	assert.Equal(t, "a", recs[1].RewardID)
	// d: 5/100 > c: 10/500 по ценности за балл.
	assert.Equal(t, "d", recs[2].RewardID)
	assert.Equal(t, "c", recs[3].RewardID)
}

func TestRecommendPreferredCategory(t *testing.T) {
	svc, accounts, rewards := newTestService(t)
	ctx := context.Background()

	require.NoError(t, accounts.Create(ctx, "acc", true))
	_, err := accounts.ApplyDelta("acc", 5000)
	require.NoError(t, err)

	require.NoError(t, rewards.CreateReward(ctx, &reward.Reward{
		ID: "sub", Title: "Месяц подписки", Category: "subscriptions",
		PointCost: 1500, InStock: true, Active: true,
	}))
	require.NoError(t, rewards.CreateRedemption(ctx, &reward.Redemption{
		AccountID: "acc", RewardID: "old", Category: "subscriptions", PointCost: 1000,
	}))

	recs, err := svc.Recommend(ctx, "acc")
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "sub", recs[0].RewardID)
	assert.Equal(t, config.DefaultTunables().Recommend.PriorityCategory, recs[0].Priority)
}

func TestRecommendTopNTruncation(t *testing.T) {
	svc, accounts, rewards := newTestService(t)
	ctx := context.Background()

	require.NoError(t, accounts.Create(ctx, "acc", true))
	_, err := accounts.ApplyDelta("acc", 10000)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, rewards.CreateReward(ctx, &reward.Reward{
			Title: "Награда", Category: "misc",
			PointCost: int64(8000 + i*100), RealValue: 1,
			InStock: true, Active: true,
		}))
	}

	recs, err := svc.Recommend(ctx, "acc")
	require.NoError(t, err)
	assert.Len(t, recs, config.DefaultTunables().Recommend.TopN)
}

func TestEngagementTriggers(t *testing.T) {
	svc, accounts, _ := newTestService(t)
	ctx := context.Background()

	// Стрик 8 дней, логин 23.5 часа назад, баланс в окне рубежа.
	require.NoError(t, accounts.Create(ctx, "acc", true))
	require.NoError(t, accounts.UpdateLogin(ctx, "acc", 8, 8, time.Now().Add(-23*time.Hour-30*time.Minute)))
	_, err := accounts.ApplyDelta("acc", 1200)
	require.NoError(t, err)

	triggers, err := svc.EngagementTriggers(ctx, "acc")
	require.NoError(t, err)

	types := make(map[string]string)
	for _, tr := range triggers {
		types[tr.Type] = tr.Priority
	}
	assert.Equal(t, PriorityUrgent, types[TriggerStreakRisk], "длинный стрик — срочное уведомление")
	assert.Equal(t, PriorityMedium, types[TriggerPointsMilestone])
	assert.NotContains(t, types, TriggerChurnRisk)
}

func TestEngagementTriggersChurn(t *testing.T) {
	svc, accounts, _ := newTestService(t)
	ctx := context.Background()

	// 8 дней без логина и неактивная подписка: 25 + 35 = 60 → high.
	require.NoError(t, accounts.Create(ctx, "acc", false))
	require.NoError(t, accounts.UpdateLogin(ctx, "acc", 5, 5, time.Now().Add(-8*24*time.Hour)))

	triggers, err := svc.EngagementTriggers(ctx, "acc")
	require.NoError(t, err)

	found := false
	for _, tr := range triggers {
		if tr.Type == TriggerChurnRisk {
			found = true
			assert.Equal(t, PriorityUrgent, tr.Priority)
		}
	}
	assert.True(t, found)
}
