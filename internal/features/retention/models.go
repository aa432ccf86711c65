// Package retention реализует предсказание оттока и рекомендации
// наград. Движок ничего не пишет: читает аккаунт, леджер и историю
// обменов и выдаёт чистый результат.
package retention

// ChurnRiskProfile — снимок риска оттока аккаунта.
// Не персистится: пересчитывается по запросу из текущего состояния.
type ChurnRiskProfile struct {
	AccountID          string   `json:"account_id"`
	RiskLevel          string   `json:"risk_level"`
	RiskScore          int      `json:"risk_score"`
	Factors            []string `json:"factors"`
	RecommendedActions []string `json:"recommended_actions"`
}

// Recommendation — кандидат в список рекомендаций наград.
type Recommendation struct {
	RewardID  string `json:"reward_id"`
	Title     string `json:"title"`
	PointCost int64  `json:"point_cost"`
	Category  string `json:"category"`
	Reason    string `json:"reason"`
	Priority  int    `json:"priority"`
}

// Типы и приоритеты триггеров вовлечения.
const (
	TriggerStreakRisk      = "streak_risk"
	TriggerPointsMilestone = "points_milestone"
	TriggerChurnRisk       = "churn_risk"

	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Trigger — совет отправить уведомление. Движок только советует;
// доставку выполняет внешний потребитель.
type Trigger struct {
	AccountID string `json:"account_id"`
	Type      string `json:"type"`
	Priority  string `json:"priority"`
	Message   string `json:"message"`
}
