package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/features/account"
)

func newTestLedger(t *testing.T) (*Service, *Memory, *account.Memory) {
	t.Helper()
	accounts := account.NewMemory()
	require.NoError(t, accounts.Create(context.Background(), "acc", true))
	store := NewMemory(accounts)
	return NewService(store, 3, time.Millisecond, 12), store, accounts
}

func TestAwardAndBalance(t *testing.T) {
	svc, _, accounts := newTestLedger(t)
	ctx := context.Background()

	tx, err := svc.Award(ctx, AwardRequest{
		AccountID: "acc", Amount: 150,
		Type: TypeLoginStreak, SourceType: SourceStreak, SourceID: "7",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), tx.BalanceAfter)
	require.NotNil(t, tx.ExpiresAt, "положительное начисление получает срок жизни")

	acc, err := accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(150), acc.Balance)
	assert.Equal(t, int64(150), acc.TotalEarned)
}

func TestIdempotentReplay(t *testing.T) {
	svc, store, accounts := newTestLedger(t)
	ctx := context.Background()

	req := AwardRequest{
		AccountID: "acc", Amount: 100,
		Type: TypeReferralSignup, SourceType: SourceReferral, SourceID: "friend",
	}
	first, created, err := svc.AwardDetailed(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.AwardDetailed(ctx, req)
	require.NoError(t, err)
	assert.False(t, created, "повтор события не создаёт запись")
	assert.Equal(t, first.ID, second.ID, "возвращается прежний результат")

	sum, err := store.SumAmounts(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(100), sum)

	acc, err := accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acc.Balance)
}

func TestInsufficientBalance(t *testing.T) {
	svc, store, accounts := newTestLedger(t)
	ctx := context.Background()

	_, err := svc.Award(ctx, AwardRequest{
		AccountID: "acc", Amount: 50,
		Type: TypeLoginStreak, SourceType: SourceStreak, SourceID: "1",
	})
	require.NoError(t, err)

	_, err = svc.Spend(ctx, "acc", 100, TypeRedemption, SourceRedemption, "r1", "обмен")
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	// Отказ ничего не меняет: ни записи, ни сдвига баланса.
	sum, err := store.SumAmounts(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(50), sum)
	acc, err := accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(50), acc.Balance)
}

func TestZeroAmountRejected(t *testing.T) {
	svc, _, _ := newTestLedger(t)

	_, err := svc.Award(context.Background(), AwardRequest{AccountID: "acc"})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
	_, err = svc.Spend(context.Background(), "acc", -5, TypeRedemption, SourceRedemption, "r", "")
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestConservationUnderConcurrentAwards(t *testing.T) {
	svc, store, accounts := newTestLedger(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Award(ctx, AwardRequest{
				AccountID: "acc", Amount: 10,
				Type: TypeChallengeBonus, SourceType: SourceChallenge,
				SourceID: fmt.Sprintf("ch-%d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	acc, err := accounts.Get(ctx, "acc")
	require.NoError(t, err)
	sum, err := store.SumAmounts(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), acc.Balance)
	assert.Equal(t, acc.Balance, sum, "баланс равен сумме журнала")
}

func TestHistoryPaging(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Award(ctx, AwardRequest{
			AccountID: "acc", Amount: int64(i + 1),
			Type: TypeChallengeBonus, SourceType: SourceChallenge,
			SourceID: fmt.Sprintf("ch-%d", i),
		})
		require.NoError(t, err)
	}

	page, err := svc.History(ctx, "acc", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(5), page[0].Amount, "новые первыми")
	assert.Equal(t, int64(4), page[1].Amount)

	page, err = svc.History(ctx, "acc", 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].Amount)
}

// flakyStore пропускает первые fails записей с временной ошибкой.
type flakyStore struct {
	Store
	mu    sync.Mutex
	fails int
}

func (f *flakyStore) Append(ctx context.Context, tx *Transaction) (*Transaction, bool, error) {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return nil, false, fmt.Errorf("временный сбой: %w", common.ErrTransientStore)
	}
	f.mu.Unlock()
	return f.Store.Append(ctx, tx)
}

func TestTransientFailureRetried(t *testing.T) {
	accounts := account.NewMemory()
	require.NoError(t, accounts.Create(context.Background(), "acc", true))
	flaky := &flakyStore{Store: NewMemory(accounts), fails: 2}
	svc := NewService(flaky, 3, time.Millisecond, 0)

	tx, err := svc.Award(context.Background(), AwardRequest{
		AccountID: "acc", Amount: 10,
		Type: TypeLoginStreak, SourceType: SourceStreak, SourceID: "1",
	})
	require.NoError(t, err, "две неудачи укладываются в три попытки")
	assert.Equal(t, int64(10), tx.BalanceAfter)

	flaky.fails = 5
	_, err = svc.Award(context.Background(), AwardRequest{
		AccountID: "acc", Amount: 10,
		Type: TypeLoginStreak, SourceType: SourceStreak, SourceID: "2",
	})
	assert.ErrorIs(t, err, common.ErrTransientStore, "исчерпание попыток отдаёт ошибку наружу")
}

func TestSweepExpired(t *testing.T) {
	svc, store, accounts := newTestLedger(t)
	ctx := context.Background()

	_, err := svc.Award(ctx, AwardRequest{
		AccountID: "acc", Amount: 300,
		Type: TypeLoginStreak, SourceType: SourceStreak, SourceID: "7",
	})
	require.NoError(t, err)
	_, err = svc.Spend(ctx, "acc", 100, TypeRedemption, SourceRedemption, "r1", "обмен")
	require.NoError(t, err)

	// Через 13 месяцев начисление просрочено, но 100 уже потрачены:
	// списывается только остаток 200.
	future := time.Now().Add(13 * 30 * 24 * time.Hour)
	total, err := svc.SweepExpired(ctx, future)
	require.NoError(t, err)
	assert.Equal(t, int64(200), total)

	acc, err := accounts.Get(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.Balance)

	sum, err := store.SumAmounts(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, acc.Balance, sum, "компенсирующая запись сохраняет инвариант")

	// Повторный прогон ничего не находит.
	total, err = svc.SweepExpired(ctx, future)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}
