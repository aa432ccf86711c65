// Package integrity — detectors.go содержит встроенные скореры.
// Каждый скорер детерминирован: одинаковый вход — одинаковый вклад.
// Вклад считается как weight × степень превышения лимита и
// ограничивается потолком cap детектора.
package integrity

import (
	"context"
	"math"
)

// Теги встроенных типов детекции.
const (
	TypeDuplicateSubmission = "duplicate_submission"
	TypeImpossibleTiming    = "impossible_timing"
	TypeIPMismatch          = "ip_mismatch"
	TypePatternAnomaly      = "pattern_anomaly"
	TypeAccountAgeNew       = "account_age_new"
	TypeRapidProgression    = "rapid_progression"
)

// numField достаёт числовое поле payload; отсутствие — 0.
// JSON-декодер кладёт числа как float64, но сигнал может прийти
// и из кода с int-значениями.
func numField(payload map[string]any, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// excessScore — общая формула «превышение лимита»:
// observed ≤ limit даёт 0, иначе weight × (observed/limit), не выше cap.
func excessScore(observed float64, in Input) float64 {
	limit := float64(in.Weights.Limit)
	if limit <= 0 || observed <= limit {
		return 0
	}
	return math.Min(float64(in.Weights.Weight)*(observed/limit), float64(in.Weights.Cap))
}

// scoreDuplicateSubmission — слишком много заявок в окне.
// payload: submissions — число заявок аккаунта за окно детектора.
func scoreDuplicateSubmission(_ context.Context, in Input) float64 {
	return excessScore(numField(in.Payload, "submissions"), in)
}

// scoreImpossibleTiming — физически невозможная частота событий.
// payload: events_last_hour.
func scoreImpossibleTiming(_ context.Context, in Input) float64 {
	return excessScore(numField(in.Payload, "events_last_hour"), in)
}

// scoreIPMismatch — слишком много разных IP за сутки.
// payload: unique_ips.
func scoreIPMismatch(_ context.Context, in Input) float64 {
	return excessScore(numField(in.Payload, "unique_ips"), in)
}

// scorePatternAnomaly — статистический выброс относительно истории.
// payload: history_size — объём истории; deviations — отклонение
// текущего значения в сигмах. Мало истории — аномалию не считаем.
func scorePatternAnomaly(_ context.Context, in Input) float64 {
	if numField(in.Payload, "history_size") < float64(in.Weights.Limit) {
		return 0
	}
	if numField(in.Payload, "deviations") <= in.Weights.Deviation {
		return 0
	}
	return math.Min(float64(in.Weights.Weight), float64(in.Weights.Cap))
}

// scoreAccountAge — свежие аккаунты рискованнее.
// Моложе суток — полный вес, моложе Limit дней — половина.
func scoreAccountAge(_ context.Context, in Input) float64 {
	if in.Account == nil {
		return 0
	}
	ageDays := in.Now.Sub(in.Account.CreatedAt).Hours() / 24
	switch {
	case ageDays < 1:
		return float64(in.Weights.Weight)
	case ageDays < float64(in.Weights.Limit):
		return math.Floor(float64(in.Weights.Weight) * 0.5)
	default:
		return 0
	}
}

// scoreRapidProgression — слишком много баллов за сутки.
// payload: points_last_day; порог — полтора дневных лимита.
func scoreRapidProgression(_ context.Context, in Input) float64 {
	if numField(in.Payload, "points_last_day") > float64(in.Weights.Limit)*1.5 {
		return float64(in.Weights.Weight)
	}
	return 0
}
