// Package api — router.go собирает HTTP-поверхность движка.
// Входящие события и чтения открыты; разбор алертов, ручные
// корректировки и управление каталогами требуют ключа ревьюера.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
	"ggloop.io/loyalty-engine/internal/features/challenge"
	"ggloop.io/loyalty-engine/internal/features/integrity"
	"ggloop.io/loyalty-engine/internal/features/ledger"
	"ggloop.io/loyalty-engine/internal/features/referral"
	"ggloop.io/loyalty-engine/internal/features/retention"
	"ggloop.io/loyalty-engine/internal/features/reward"
	"ggloop.io/loyalty-engine/internal/features/streak"
)

// Server — HTTP-поверхность движка.
type Server struct {
	accounts   account.Store
	ledger     *ledger.Service
	streaks    *streak.Service
	referrals  *referral.Service
	integrity  *integrity.Service
	retention  *retention.Service
	rewards    *reward.Service
	challenges *challenge.Service
	cfg        *config.Config
}

// NewServer создаёт HTTP-поверхность поверх сервисов движка.
func NewServer(
	accounts account.Store,
	ledgerService *ledger.Service,
	streaks *streak.Service,
	referrals *referral.Service,
	integrityService *integrity.Service,
	retentionService *retention.Service,
	rewards *reward.Service,
	challenges *challenge.Service,
	cfg *config.Config,
) *Server {
	return &Server{
		accounts:   accounts,
		ledger:     ledgerService,
		streaks:    streaks,
		referrals:  referrals,
		integrity:  integrityService,
		retention:  retentionService,
		rewards:    rewards,
		challenges: challenges,
		cfg:        cfg,
	}
}

// Router собирает все маршруты.
func (s *Server) Router() *gin.Engine {
	if s.cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.POST("/accounts", s.createAccount)

		events := v1.Group("/events")
		{
			events.POST("/login", s.loginOccurred)
			events.POST("/referral-signup", s.referralSignupOccurred)
			events.POST("/first-activity", s.firstActivityOccurred)
			events.POST("/redemption", s.redemptionOccurred)
			events.POST("/challenge-completed", s.challengeCompleted)
			events.POST("/signal", s.behavioralSignal)
		}

		v1.GET("/accounts/:id/balance", s.getBalance)
		v1.GET("/accounts/:id/history", s.getHistory)
		v1.GET("/accounts/:id/churn-risk", s.getChurnRisk)
		v1.GET("/accounts/:id/recommendations", s.getRecommendations)
		v1.GET("/accounts/:id/streak/next", s.getNextMilestone)
		v1.GET("/referrals/:id/stats", s.getReferralStats)
		v1.GET("/alerts", s.listAlerts)
		v1.GET("/alerts/stats", s.alertStats)
		v1.GET("/rewards", s.listRewards)
		v1.GET("/challenges", s.listChallenges)

		reviewer := v1.Group("", reviewerAuth(s.cfg.ReviewerKeyHash))
		{
			reviewer.POST("/alerts/:id/resolve", s.resolveAlert)
			reviewer.POST("/accounts/:id/adjust", s.adjustBalance)
			reviewer.POST("/accounts/:id/subscription", s.setSubscription)
			reviewer.POST("/rewards", s.createReward)
			reviewer.POST("/challenges", s.createChallenge)
		}
	}

	return r
}

// respondError переводит ошибки доменного слоя в HTTP-статусы.
// Дубликаты событий сюда не доходят: леджер поглощает их и отдаёт
// прежний результат.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrAccountNotFound),
		errors.Is(err, common.ErrAlertNotFound),
		errors.Is(err, common.ErrRewardNotFound),
		errors.Is(err, common.ErrChallengeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrInsufficientBalance),
		errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, common.ErrSelfReferral),
		errors.Is(err, common.ErrUnknownDetection):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrDuplicateReferral),
		errors.Is(err, common.ErrInvalidTransition),
		errors.Is(err, common.ErrChallengeInactive),
		errors.Is(err, common.ErrChallengeCapReached):
		status = http.StatusConflict
	case errors.Is(err, common.ErrTransientStore):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
