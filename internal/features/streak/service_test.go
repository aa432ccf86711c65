package streak

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
	"ggloop.io/loyalty-engine/internal/features/ledger"
)

func newTestService(t *testing.T) (*Service, *ledger.Memory, *account.Memory) {
	t.Helper()
	accounts := account.NewMemory()
	require.NoError(t, accounts.Create(context.Background(), "acc", true))
	store := ledger.NewMemory(accounts)
	ledgerSvc := ledger.NewService(store, 3, time.Millisecond, 12)
	return NewService(accounts, ledgerSvc, config.DefaultTunables()), store, accounts
}

func seedLogin(t *testing.T, accounts *account.Memory, streak int, ago time.Duration) {
	t.Helper()
	require.NoError(t, accounts.UpdateLogin(context.Background(), "acc", streak, streak, time.Now().Add(-ago)))
}

func TestLoginContinuesStreak(t *testing.T) {
	svc, store, accounts := newTestService(t)
	ctx := context.Background()

	// 30 часов с прошлого логина — окно продолжения; стрик 6 → 7,
	// майлстоун даёт ровно +100 типа login_streak.
	seedLogin(t, accounts, 6, 30*time.Hour)

	res, err := svc.RecordLogin(ctx, "acc", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Streak)
	assert.Equal(t, int64(100), res.MilestoneBonus)
	assert.Equal(t, 1.5, res.Multiplier)
	assert.True(t, res.IsNewRecord)

	history, err := store.History(ctx, "acc", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ledger.TypeLoginStreak, history[0].Type)
	assert.Equal(t, int64(100), history[0].Amount)
}

func TestLoginResetsStreak(t *testing.T) {
	svc, store, accounts := newTestService(t)
	ctx := context.Background()

	// 50 часов — стрик сгорает, майлстоуна нет.
	seedLogin(t, accounts, 6, 50*time.Hour)

	res, err := svc.RecordLogin(ctx, "acc", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(0), res.MilestoneBonus)
	assert.Equal(t, 6, res.LongestStreak, "рекорд переживает сброс")
	assert.False(t, res.IsNewRecord)

	history, err := store.History(ctx, "acc", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSameSessionLogin(t *testing.T) {
	svc, _, accounts := newTestService(t)
	ctx := context.Background()

	seedLogin(t, accounts, 5, 3*time.Hour)

	res, err := svc.RecordLogin(ctx, "acc", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Streak, "логин в той же сессии стрик не двигает")

	acc, err := accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), *acc.LastLoginAt, time.Minute,
		"отметка времени логина обновляется")
}

func TestFirstLoginEver(t *testing.T) {
	svc, _, _ := newTestService(t)

	res, err := svc.RecordLogin(context.Background(), "acc", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 1.0, res.Multiplier)
}

func TestMultiplierMonotonic(t *testing.T) {
	tunables := config.DefaultTunables()
	prev := 0.0
	for streak := 0; streak <= 120; streak++ {
		m := tunables.MultiplierFor(streak)
		assert.GreaterOrEqual(t, m, prev, "стрик %d", streak)
		prev = m
	}
	assert.Equal(t, 5.0, tunables.MultiplierFor(500), "потолок множителя")
}

func TestMilestoneExactlyOnceUnderConcurrency(t *testing.T) {
	svc, store, accounts := newTestService(t)
	ctx := context.Background()

	seedLogin(t, accounts, 6, 30*time.Hour)

	const callers = 100
	var wg sync.WaitGroup
	now := time.Now()
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordLogin(ctx, "acc", now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := store.History(ctx, "acc", 200, 0)
	require.NoError(t, err)
	require.Len(t, history, 1, "майлстоун сработал ровно один раз")
	assert.Equal(t, int64(100), history[0].Amount)

	acc, err := accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, 7, acc.LoginStreak)
	assert.Equal(t, int64(100), acc.Balance)
}

func TestMilestoneNeverRepeatsAfterReset(t *testing.T) {
	svc, store, accounts := newTestService(t)
	ctx := context.Background()

	// Первый выход на стрик 7.
	seedLogin(t, accounts, 6, 30*time.Hour)
	res, err := svc.RecordLogin(ctx, "acc", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.MilestoneBonus)

	// Сброс и повторный набор той же длины: бонус не повторяется.
	seedLogin(t, accounts, 6, 30*time.Hour)
	res, err = svc.RecordLogin(ctx, "acc", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Streak)
	assert.Equal(t, int64(0), res.MilestoneBonus)

	history, err := store.History(ctx, "acc", 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestNextMilestone(t *testing.T) {
	svc, _, accounts := newTestService(t)
	ctx := context.Background()

	seedLogin(t, accounts, 10, time.Hour)
	nm, err := svc.Next(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, 14, nm.Days)
	assert.Equal(t, 4, nm.DaysRemaining)
	assert.Equal(t, int64(250), nm.Reward)
	assert.False(t, nm.IsMax)

	seedLogin(t, accounts, 120, time.Hour)
	nm, err = svc.Next(ctx, "acc")
	require.NoError(t, err)
	assert.True(t, nm.IsMax)
}
