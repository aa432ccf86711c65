package reward

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
	"ggloop.io/loyalty-engine/internal/features/ledger"
	"ggloop.io/loyalty-engine/internal/features/referral"
)

type rewardFixture struct {
	svc       *Service
	referrals *referral.Service
	ledger    *ledger.Service
	accounts  *account.Memory
	store     *Memory
}

func newFixture(t *testing.T) *rewardFixture {
	t.Helper()
	accounts := account.NewMemory()
	require.NoError(t, accounts.Create(context.Background(), "acc", true))
	ledgerSvc := ledger.NewService(ledger.NewMemory(accounts), 3, time.Millisecond, 12)
	referralSvc := referral.NewService(referral.NewMemory(), ledgerSvc, config.DefaultTunables())
	store := NewMemory()
	return &rewardFixture{
		svc:       NewService(store, ledgerSvc, referralSvc),
		referrals: referralSvc,
		ledger:    ledgerSvc,
		accounts:  accounts,
		store:     store,
	}
}

func (f *rewardFixture) seedReward(t *testing.T, cost int64) *Reward {
	t.Helper()
	rw := &Reward{Title: "Скин оружия", Category: "cosmetics", PointCost: cost, RealValue: 4.99, InStock: true, Active: true}
	require.NoError(t, f.svc.Create(context.Background(), rw))
	return rw
}

func TestRedeemSpendsPointsAndRecordsRedemption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.ApplyDelta("acc", 1000)
	require.NoError(t, err)
	rw := f.seedReward(t, 400)

	rd, err := f.svc.Redeem(ctx, "acc", rw.ID, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", rd.ID)
	assert.Equal(t, int64(400), rd.PointCost)

	acc, err := f.accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(600), acc.Balance)

	history, err := f.svc.History(ctx, "acc", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rw.ID, history[0].RewardID)
}

func TestRedeemInsufficientBalanceLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.ApplyDelta("acc", 100)
	require.NoError(t, err)
	rw := f.seedReward(t, 400)

	_, err = f.svc.Redeem(ctx, "acc", rw.ID, "req-1")
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	acc, err := f.accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acc.Balance)

	history, err := f.svc.History(ctx, "acc", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRedeemReplaySpendsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.ApplyDelta("acc", 1000)
	require.NoError(t, err)
	rw := f.seedReward(t, 400)

	first, err := f.svc.Redeem(ctx, "acc", rw.ID, "req-1")
	require.NoError(t, err)
	second, err := f.svc.Redeem(ctx, "acc", rw.ID, "req-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Баланс списан ровно один раз, запись обмена одна.
	acc, err := f.accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(600), acc.Balance)

	history, err := f.svc.History(ctx, "acc", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

// flakyRedemptionStore роняет первые failures записей обмена,
// имитируя сбой между списанием и фиксацией.
type flakyRedemptionStore struct {
	*Memory
	failures int
}

func (f *flakyRedemptionStore) CreateRedemption(ctx context.Context, r *Redemption) error {
	if f.failures > 0 {
		f.failures--
		return common.ErrTransientStore
	}
	return f.Memory.CreateRedemption(ctx, r)
}

func TestRedeemRetryAfterRecordFailure(t *testing.T) {
	ctx := context.Background()
	accounts := account.NewMemory()
	require.NoError(t, accounts.Create(ctx, "acc", true))
	require.NoError(t, accounts.Create(ctx, "referrer", true))
	ledgerSvc := ledger.NewService(ledger.NewMemory(accounts), 3, time.Millisecond, 12)
	referralSvc := referral.NewService(referral.NewMemory(), ledgerSvc, config.DefaultTunables())
	store := &flakyRedemptionStore{Memory: NewMemory(), failures: 1}
	svc := NewService(store, ledgerSvc, referralSvc)

	_, err := referralSvc.OnSignup(ctx, "referrer", "acc")
	require.NoError(t, err)
	_, err = accounts.ApplyDelta("acc", 900) // +100 за регистрацию = 1000
	require.NoError(t, err)

	rw := &Reward{Title: "Скин оружия", Category: "cosmetics", PointCost: 500, InStock: true, Active: true}
	require.NoError(t, svc.Create(ctx, rw))

	// Первая попытка: списание прошло, фиксация обмена упала.
	_, err = svc.Redeem(ctx, "acc", rw.ID, "req-1")
	require.Error(t, err)

	acc, err := accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(500), acc.Balance)
	history, err := svc.History(ctx, "acc", 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Повтор с тем же requestID дозаписывает обмен и двигает
	// реферальный конвейер, не списывая второй раз.
	rd, err := svc.Redeem(ctx, "acc", rw.ID, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", rd.ID)

	acc, err = accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(500), acc.Balance)

	history, err = svc.History(ctx, "acc", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	// Реферер: 100 за регистрацию + 10% от 500.
	referrer, err := accounts.Get(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, int64(150), referrer.Balance)

	stats, err := referralSvc.Stats(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
}

func TestRedeemUnavailableReward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.ApplyDelta("acc", 1000)
	require.NoError(t, err)

	rw := &Reward{Title: "Снято с продажи", PointCost: 100, InStock: true, Active: false}
	require.NoError(t, f.store.CreateReward(ctx, rw))

	_, err = f.svc.Redeem(ctx, "acc", rw.ID, "req-1")
	assert.ErrorIs(t, err, common.ErrRewardNotFound)

	_, err = f.svc.Redeem(ctx, "acc", "no-such-reward", "req-2")
	assert.ErrorIs(t, err, common.ErrRewardNotFound)
}

func TestRedeemAdvancesReferralPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.accounts.Create(ctx, "referrer", true))
	_, err := f.referrals.OnSignup(ctx, "referrer", "acc")
	require.NoError(t, err)

	// Бонусы за регистрацию: по 100 каждому.
	_, err = f.accounts.ApplyDelta("acc", 900) // итого 1000
	require.NoError(t, err)
	rw := f.seedReward(t, 500)

	_, err = f.svc.Redeem(ctx, "acc", rw.ID, "req-1")
	require.NoError(t, err)

	// Реферер получает 10% от списанных баллов.
	referrer, err := f.accounts.Get(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, int64(150), referrer.Balance)

	stats, err := f.referrals.Stats(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
}

func TestCreateRejectsNonPositiveCost(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Create(context.Background(), &Reward{Title: "Бесплатно", PointCost: 0})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}
