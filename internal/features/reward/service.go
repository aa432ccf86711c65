// Package reward — service.go содержит обмен баллов на награды.
// Списание идёт через леджер и подчиняется его гарантиям: баланс
// не уходит в минус, повтор запроса с тем же requestID не списывает
// баллы второй раз.
package reward

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/features/ledger"
	"ggloop.io/loyalty-engine/internal/features/referral"
)

// Service управляет обменом баллов на награды.
type Service struct {
	store     Store
	ledger    *ledger.Service
	referrals *referral.Service
}

// NewService создаёт новый сервис наград.
func NewService(store Store, ledgerService *ledger.Service, referrals *referral.Service) *Service {
	return &Service{
		store:     store,
		ledger:    ledgerService,
		referrals: referrals,
	}
}

// Redeem обменивает баллы на награду.
//
// requestID — ключ идемпотентности от вызывающей стороны; пустой
// requestID генерируется на месте, и тогда повтор запроса спишет
// баллы повторно. Недостаток баллов — ErrInsufficientBalance,
// ничего не списывается. Успешный обмен двигает реферальный
// конвейер приглашённого.
func (s *Service) Redeem(ctx context.Context, accountID, rewardID, requestID string) (*Redemption, error) {
	rw, err := s.store.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if !rw.Active || !rw.InStock {
		return nil, fmt.Errorf("%w: награда недоступна", common.ErrRewardNotFound)
	}

	if requestID == "" {
		requestID = uuid.NewString()
	}

	tx, _, err := s.ledger.AwardDetailed(ctx, ledger.AwardRequest{
		AccountID:   accountID,
		Amount:      -rw.PointCost,
		Type:        ledger.TypeRedemption,
		SourceType:  ledger.SourceRedemption,
		SourceID:    requestID,
		Description: fmt.Sprintf("Обмен баллов: %s", rw.Title),
	})
	if err != nil {
		return nil, err
	}

	rd := &Redemption{
		ID:        requestID,
		AccountID: accountID,
		RewardID:  rw.ID,
		Category:  rw.Category,
		PointCost: rw.PointCost,
	}
	// Запись обмена идемпотентна по id: повтор запроса после сбоя
	// между списанием и фиксацией дозаписывает недостающее.
	if err := s.store.CreateRedemption(ctx, rd); err != nil {
		return nil, fmt.Errorf("ошибка фиксации обмена: %w", err)
	}

	if err := s.referrals.OnRedemption(ctx, accountID, rw.PointCost); err != nil {
		// Обмен уже состоялся; доля реферера догонится при
		// следующем событии, поэтому не валим весь запрос.
		log.WithError(err).WithField("account_id", accountID).
			Error("Не удалось начислить реферальную долю за обмен")
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"reward_id":  rw.ID,
		"cost":       rw.PointCost,
		"balance":    tx.BalanceAfter,
	}).Info("Баллы обменяны на награду")

	return rd, nil
}

// Create добавляет награду в каталог.
func (s *Service) Create(ctx context.Context, rw *Reward) error {
	if rw.PointCost <= 0 {
		return common.ErrInvalidAmount
	}
	return s.store.CreateReward(ctx, rw)
}

// Catalog возвращает активные награды не дороже maxCost.
func (s *Service) Catalog(ctx context.Context, maxCost int64, limit int) ([]*Reward, error) {
	return s.store.ListAffordable(ctx, maxCost, limit)
}

// History возвращает обмены аккаунта, новые первыми.
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]*Redemption, error) {
	return s.store.ListRedemptions(ctx, accountID, limit)
}
