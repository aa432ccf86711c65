// Package config — tunables.go описывает числовые таблицы движка:
// майлстоуны стриков, реферальные бонусы, веса детекторов, пороги
// серьёзности и веса churn-факторов. Пороги — конфигурация, а не код:
// их можно подкрутить YAML-файлом без пересборки.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// MultiplierStep — ступень множителя: от стрика MinStreak и выше
// действует множитель Factor (до следующей ступени).
type MultiplierStep struct {
	MinStreak int     `yaml:"min_streak"`
	Factor    float64 `yaml:"factor"`
}

// DetectorWeights — вес, потолок вклада и порог чувствительности
// одного типа детекции. Limit — допустимое число событий в окне
// детектора (превышение даёт вклад weight × excess, не выше cap).
// Deviation — порог в стандартных отклонениях для статистических
// детекторов; остальные его игнорируют.
type DetectorWeights struct {
	Weight    int     `yaml:"weight"`
	Cap       int     `yaml:"cap"`
	Limit     int     `yaml:"limit,omitempty"`
	Deviation float64 `yaml:"deviation,omitempty"`
}

// ReferralTunables — размеры реферальных бонусов по этапам.
type ReferralTunables struct {
	SignupBonus     int64   `yaml:"signup_bonus"`
	ActivityBonus   int64   `yaml:"activity_bonus"`
	RedemptionShare float64 `yaml:"redemption_share"`
}

// SeverityBands — нижние границы полос серьёзности алертов.
// Полосы смежные и покрывают [0,100]: score >= Critical → critical,
// иначе >= High → high, иначе >= Medium → medium, иначе low.
// Алерт создаётся только при score >= Medium.
type SeverityBands struct {
	Critical int `yaml:"critical"`
	High     int `yaml:"high"`
	Medium   int `yaml:"medium"`
}

// ChurnWeights — аддитивные веса churn-факторов.
type ChurnWeights struct {
	Recency14Days        int   `yaml:"recency_14_days"`
	Recency7Days         int   `yaml:"recency_7_days"`
	Recency3Days         int   `yaml:"recency_3_days"`
	LostStreak           int   `yaml:"lost_streak"`
	LowStreak            int   `yaml:"low_streak"`
	IdleBalance          int   `yaml:"idle_balance"`
	InactiveSubscription int   `yaml:"inactive_subscription"`
	IdleBalanceThreshold int64 `yaml:"idle_balance_threshold"`
}

// RecommendTunables — параметры ранжирования рекомендаций.
type RecommendTunables struct {
	TopN              int     `yaml:"top_n"`
	AlmostThereMin    float64 `yaml:"almost_there_min"`
	PriorityAlmost    int     `yaml:"priority_almost"`
	PriorityCategory  int     `yaml:"priority_category"`
	PriorityBestValue int     `yaml:"priority_best_value"`
}

// Tunables объединяет все таблицы движка.
type Tunables struct {
	// Майлстоуны стриков: длина стрика → одноразовый бонус.
	Milestones map[int]int64 `yaml:"milestones"`
	// Ступени множителя для прочих начислений.
	Multipliers []MultiplierStep `yaml:"multipliers"`

	Referral ReferralTunables `yaml:"referral"`

	// Веса детекторов по типам детекции.
	Detectors map[string]DetectorWeights `yaml:"detectors"`
	Severity  SeverityBands              `yaml:"severity"`

	Churn ChurnWeights `yaml:"churn"`
	// Пороги уровней churn-риска, та же схема полос, что и Severity.
	RiskLevels SeverityBands `yaml:"risk_levels"`

	Recommend RecommendTunables `yaml:"recommend"`
}

// DefaultTunables возвращает таблицы по умолчанию.
// Значения совпадают с продакшен-настройками платформы.
func DefaultTunables() *Tunables {
	return &Tunables{
		Milestones: map[int]int64{
			7:  100,
			14: 250,
			30: 500,
			60: 1000,
			90: 2000,
		},
		Multipliers: []MultiplierStep{
			{MinStreak: 0, Factor: 1.0},
			{MinStreak: 7, Factor: 1.5},
			{MinStreak: 14, Factor: 2.0},
			{MinStreak: 30, Factor: 3.0},
			{MinStreak: 60, Factor: 4.0},
			{MinStreak: 90, Factor: 5.0},
		},
		Referral: ReferralTunables{
			SignupBonus:     100,
			ActivityBonus:   50,
			RedemptionShare: 0.10,
		},
		Detectors: map[string]DetectorWeights{
			"duplicate_submission": {Weight: 25, Cap: 40, Limit: 10},
			"impossible_timing":    {Weight: 30, Cap: 50, Limit: 6},
			"ip_mismatch":          {Weight: 15, Cap: 30, Limit: 3},
			"pattern_anomaly":      {Weight: 20, Cap: 30, Limit: 10, Deviation: 2.5},
			"account_age_new":      {Weight: 10, Cap: 10, Limit: 7},
			"rapid_progression":    {Weight: 15, Cap: 15, Limit: 500},
		},
		Severity: SeverityBands{Critical: 90, High: 70, Medium: 40},
		Churn: ChurnWeights{
			Recency14Days:        40,
			Recency7Days:         25,
			Recency3Days:         10,
			LostStreak:           20,
			LowStreak:            10,
			IdleBalance:          15,
			InactiveSubscription: 35,
			IdleBalanceThreshold: 5000,
		},
		RiskLevels: SeverityBands{Critical: 70, High: 50, Medium: 30},
		Recommend: RecommendTunables{
			TopN:              5,
			AlmostThereMin:    0.80,
			PriorityAlmost:    100,
			PriorityCategory:  80,
			PriorityBestValue: 70,
		},
	}
}

// LoadTunables читает YAML-файл поверх дефолтов.
// Пустой путь — возвращаются дефолты.
func LoadTunables(path string) (*Tunables, error) {
	t := DefaultTunables()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("некорректный YAML в %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("некорректные таблицы в %s: %w", path, err)
	}
	return t, nil
}

// Validate проверяет, что полосы смежные и покрывают [0,100],
// а таблицы множителей монотонны.
func (t *Tunables) Validate() error {
	for _, b := range []struct {
		name  string
		bands SeverityBands
	}{{"severity", t.Severity}, {"risk_levels", t.RiskLevels}} {
		if !(0 < b.bands.Medium && b.bands.Medium < b.bands.High && b.bands.High < b.bands.Critical && b.bands.Critical <= 100) {
			return fmt.Errorf("%s: границы полос должны удовлетворять 0 < medium < high < critical <= 100", b.name)
		}
	}

	steps := make([]MultiplierStep, len(t.Multipliers))
	copy(steps, t.Multipliers)
	sort.Slice(steps, func(i, j int) bool { return steps[i].MinStreak < steps[j].MinStreak })
	if len(steps) == 0 || steps[0].MinStreak != 0 {
		return fmt.Errorf("multipliers: первая ступень должна начинаться с min_streak=0")
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].Factor < steps[i-1].Factor {
			return fmt.Errorf("multipliers: множитель должен быть неубывающим по стрику")
		}
	}

	if t.Referral.RedemptionShare < 0 || t.Referral.RedemptionShare > 1 {
		return fmt.Errorf("referral.redemption_share должен быть в [0,1]")
	}
	if t.Recommend.TopN <= 0 {
		return fmt.Errorf("recommend.top_n должен быть > 0")
	}
	for name, d := range t.Detectors {
		if d.Weight <= 0 || d.Cap < d.Weight {
			return fmt.Errorf("detectors.%s: требуется 0 < weight <= cap", name)
		}
	}
	return nil
}

// MultiplierFor возвращает множитель для данной длины стрика.
// Ступенчатая функция, монотонно неубывающая.
func (t *Tunables) MultiplierFor(streak int) float64 {
	factor := 1.0
	best := -1
	for _, s := range t.Multipliers {
		if streak >= s.MinStreak && s.MinStreak > best {
			best = s.MinStreak
			factor = s.Factor
		}
	}
	return factor
}

// SeverityFor возвращает имя полосы для данного score.
func (b SeverityBands) SeverityFor(score int) string {
	switch {
	case score >= b.Critical:
		return "critical"
	case score >= b.High:
		return "high"
	case score >= b.Medium:
		return "medium"
	default:
		return "low"
	}
}
