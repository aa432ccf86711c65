package integrity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
)

func newTestService(t *testing.T) (*Service, *account.Memory) {
	t.Helper()
	accounts := account.NewMemory()
	require.NoError(t, accounts.Create(context.Background(), "acc", true))
	svc := NewService(NewMemory(), accounts, NewRegistry(), config.DefaultTunables())
	return svc, accounts
}

func TestSeverityBandsCoverFullRange(t *testing.T) {
	bands := config.DefaultTunables().Severity
	for score := 0; score <= 100; score++ {
		sev := bands.SeverityFor(score)
		matches := 0
		if score >= bands.Critical {
			matches++
			assert.Equal(t, "critical", sev, "score %d", score)
		} else if score >= bands.High {
			matches++
			assert.Equal(t, "high", sev, "score %d", score)
		} else if score >= bands.Medium {
			matches++
			assert.Equal(t, "medium", sev, "score %d", score)
		} else {
			matches++
			assert.Equal(t, "low", sev, "score %d", score)
		}
		assert.Equal(t, 1, matches, "ровно одна полоса на score %d", score)
	}
}

func TestEvaluateCreatesAlertAboveThreshold(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// 20 событий в час при лимите 6: вклад детектора упирается в
	// потолок 50; свежий аккаунт добавляет 10 → 60, полоса high
	// не достигнута, medium — да.
	alert, err := svc.Evaluate(ctx, &Signal{
		AccountID:     "acc",
		DetectionType: TypeImpossibleTiming,
		SourceType:    "match",
		SourceID:      "m1",
		Payload:       map[string]any{"events_last_hour": 20},
	})
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 60, alert.RiskScore)
	assert.Equal(t, "medium", alert.Severity)
	assert.Equal(t, StatusPending, alert.Status)
}

func TestEvaluateDiscardsSubThreshold(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// 4 IP при лимите 3: 15×4/3 = 20, плюс 10 за возраст → 30 < 40.
	alert, err := svc.Evaluate(ctx, &Signal{
		AccountID:     "acc",
		DetectionType: TypeIPMismatch,
		Payload:       map[string]any{"unique_ips": 4},
	})
	require.NoError(t, err)
	assert.Nil(t, alert)

	alerts, err := svc.List(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, alerts, "подпороговая оценка не должна оставлять следа")
}

func TestEvaluateUnknownDetection(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Evaluate(context.Background(), &Signal{
		AccountID:     "acc",
		DetectionType: "telepathy",
	})
	assert.ErrorIs(t, err, common.ErrUnknownDetection)
}

func TestResolveTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	alert, err := svc.Evaluate(ctx, &Signal{
		AccountID:     "acc",
		DetectionType: TypeImpossibleTiming,
		Payload:       map[string]any{"events_last_hour": 30},
	})
	require.NoError(t, err)
	require.NotNil(t, alert)

	resolved, err := svc.Resolve(ctx, alert.ID, ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	// Повторный разбор и неизвестное действие — недопустимые переходы.
	_, err = svc.Resolve(ctx, alert.ID, ActionDismiss)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	_, err = svc.Resolve(ctx, alert.ID, "purge")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	_, err = svc.Resolve(ctx, "missing", ActionDismiss)
	assert.ErrorIs(t, err, common.ErrAlertNotFound)
}

func TestStatsPerDetectionType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, n := range []int{20, 30} {
		_, err := svc.Evaluate(ctx, &Signal{
			AccountID:     "acc",
			DetectionType: TypeImpossibleTiming,
			Payload:       map[string]any{"events_last_hour": n, "points_last_day": 800},
		})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	st := stats[0]
	assert.Equal(t, TypeImpossibleTiming, st.DetectionType)
	assert.Equal(t, 2, st.Count)
	// 50 (потолок тайминга) + 10 (возраст) + 15 (скорость набора) = 75.
	assert.InDelta(t, 75.0, st.AvgScore, 0.001)
	assert.Equal(t, 2, st.HighSeverity)
}
