// Package api — handlers.go содержит обработчики входящих событий
// и чтений. Вся бизнес-логика живёт в сервисах; обработчики только
// разбирают запрос и переводят результат в JSON.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ggloop.io/loyalty-engine/internal/features/challenge"
	"ggloop.io/loyalty-engine/internal/features/integrity"
	"ggloop.io/loyalty-engine/internal/features/reward"
)

// --- Аккаунты ---

type createAccountRequest struct {
	ID                 string `json:"id" binding:"required"`
	SubscriptionActive bool   `json:"subscription_active"`
}

func (s *Server) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.accounts.Create(c.Request.Context(), req.ID, req.SubscriptionActive); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": req.ID})
}

type setSubscriptionRequest struct {
	Active bool `json:"active"`
}

func (s *Server) setSubscription(c *gin.Context) {
	var req setSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.accounts.SetSubscription(c.Request.Context(), c.Param("id"), req.Active); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "subscription_active": req.Active})
}

// --- Входящие события ---

type loginEvent struct {
	AccountID string     `json:"account_id" binding:"required"`
	At        *time.Time `json:"at"`
}

func (s *Server) loginOccurred(c *gin.Context) {
	var ev loginEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at := time.Now()
	if ev.At != nil {
		at = *ev.At
	}
	res, err := s.streaks.RecordLogin(c.Request.Context(), ev.AccountID, at)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type referralSignupEvent struct {
	ReferrerID string `json:"referrer_id" binding:"required"`
	ReferredID string `json:"referred_id" binding:"required"`
}

func (s *Server) referralSignupOccurred(c *gin.Context) {
	var ev referralSignupEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	link, err := s.referrals.OnSignup(c.Request.Context(), ev.ReferrerID, ev.ReferredID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

type accountEvent struct {
	AccountID string `json:"account_id" binding:"required"`
}

func (s *Server) firstActivityOccurred(c *gin.Context) {
	var ev accountEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.referrals.OnFirstActivity(c.Request.Context(), ev.AccountID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type redemptionEvent struct {
	AccountID string `json:"account_id" binding:"required"`
	RewardID  string `json:"reward_id" binding:"required"`
	RequestID string `json:"request_id"`
}

func (s *Server) redemptionOccurred(c *gin.Context) {
	var ev redemptionEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rd, err := s.rewards.Redeem(c.Request.Context(), ev.AccountID, ev.RewardID, ev.RequestID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rd)
}

type challengeCompletedEvent struct {
	AccountID   string `json:"account_id" binding:"required"`
	ChallengeID string `json:"challenge_id" binding:"required"`
}

func (s *Server) challengeCompleted(c *gin.Context) {
	var ev challengeCompletedEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.challenges.Complete(c.Request.Context(), ev.AccountID, ev.ChallengeID, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) behavioralSignal(c *gin.Context) {
	var sig integrity.Signal
	if err := c.ShouldBindJSON(&sig); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sig.AccountID == "" || sig.DetectionType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id и detection_type обязательны"})
		return
	}
	alert, err := s.integrity.Evaluate(c.Request.Context(), &sig)
	if err != nil {
		respondError(c, err)
		return
	}
	if alert == nil {
		// Подпороговая оценка: алерта нет, но событие принято.
		c.JSON(http.StatusOK, gin.H{"alert": nil})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"alert": alert})
}

// --- Чтения ---

func (s *Server) getBalance(c *gin.Context) {
	acc, err := s.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	expiring, next, err := s.ledger.ExpiringPoints(c.Request.Context(), acc.ID, 30*24*time.Hour)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id":     acc.ID,
		"balance":        acc.Balance,
		"total_earned":   acc.TotalEarned,
		"total_spent":    acc.TotalSpent,
		"login_streak":   acc.LoginStreak,
		"longest_streak": acc.LongestStreak,
		"expiring_soon":  expiring,
		"next_expiry_at": next,
	})
}

func (s *Server) getHistory(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	txs, err := s.ledger.History(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (s *Server) getChurnRisk(c *gin.Context) {
	profile, err := s.retention.ChurnRisk(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) getRecommendations(c *gin.Context) {
	recs, err := s.retention.Recommend(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

func (s *Server) getNextMilestone(c *gin.Context) {
	nm, err := s.streaks.Next(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nm)
}

func (s *Server) getReferralStats(c *gin.Context) {
	stats, err := s.referrals.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listAlerts(c *gin.Context) {
	alerts, err := s.integrity.List(c.Request.Context(),
		c.Query("status"), c.Query("account_id"), intQuery(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (s *Server) alertStats(c *gin.Context) {
	stats, err := s.integrity.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) listRewards(c *gin.Context) {
	maxCost := int64(intQuery(c, "max_cost", 1<<30))
	rewards, err := s.rewards.Catalog(c.Request.Context(), maxCost, intQuery(c, "limit", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards})
}

func (s *Server) listChallenges(c *gin.Context) {
	challenges, err := s.challenges.ListActive(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenges": challenges})
}

// --- Эндпоинты ревьюера ---

type resolveAlertRequest struct {
	Action string `json:"action" binding:"required"`
}

func (s *Server) resolveAlert(c *gin.Context) {
	var req resolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alert, err := s.integrity.Resolve(c.Request.Context(), c.Param("id"), req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

type adjustRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	SourceID    string `json:"source_id" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) adjustBalance(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tx, err := s.ledger.Adjust(c.Request.Context(), c.Param("id"), req.Amount, req.SourceID, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

type createRewardRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	PointCost   int64   `json:"point_cost" binding:"required"`
	RealValue   float64 `json:"real_value"`
	Tier        int     `json:"tier"`
	InStock     *bool   `json:"in_stock"`
	Active      *bool   `json:"active"`
}

func (s *Server) createReward(c *gin.Context) {
	var req createRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Флаги доступности по умолчанию включены, как и в схеме БД.
	rw := reward.Reward{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		PointCost:   req.PointCost,
		RealValue:   req.RealValue,
		Tier:        req.Tier,
		InStock:     req.InStock == nil || *req.InStock,
		Active:      req.Active == nil || *req.Active,
	}
	if err := s.rewards.Create(c.Request.Context(), &rw); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rw)
}

type createChallengeRequest struct {
	Title           string    `json:"title" binding:"required"`
	RequirementType string    `json:"requirement_type"`
	TargetCount     int       `json:"target_count"`
	BonusPoints     int64     `json:"bonus_points" binding:"required"`
	StartsAt        time.Time `json:"starts_at" binding:"required"`
	EndsAt          time.Time `json:"ends_at" binding:"required"`
	CompletionCap   int       `json:"completion_cap"`
	Active          *bool     `json:"active"`
}

func (s *Server) createChallenge(c *gin.Context) {
	var req createChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ch := challenge.Challenge{
		Title:           req.Title,
		RequirementType: req.RequirementType,
		TargetCount:     req.TargetCount,
		BonusPoints:     req.BonusPoints,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		CompletionCap:   req.CompletionCap,
		Active:          req.Active == nil || *req.Active,
	}
	if err := s.challenges.Create(c.Request.Context(), &ch); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// intQuery читает целочисленный query-параметр с дефолтом.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return parsed
}
