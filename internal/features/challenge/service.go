// Package challenge — service.go содержит завершение челленджей.
// Бонус умножается на стрик-множитель аккаунта и идёт через леджер,
// поэтому повторное событие завершения баллы не дублирует.
package challenge

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
	"ggloop.io/loyalty-engine/internal/features/ledger"
)

// Service управляет завершением челленджей.
type Service struct {
	store    Store
	accounts account.Store
	ledger   *ledger.Service
	tunables *config.Tunables
}

// NewService создаёт новый сервис челленджей.
func NewService(store Store, accounts account.Store, ledgerService *ledger.Service, tunables *config.Tunables) *Service {
	return &Service{
		store:    store,
		accounts: accounts,
		ledger:   ledgerService,
		tunables: tunables,
	}
}

// Complete обрабатывает событие завершения челленджа.
//
// Проверяется окно действия и потолок выполнений; слот занимается
// до начисления, а при дубликате возвращается обратно — потолок
// считает только реальные выплаты. Бонус умножается на текущий
// стрик-множитель аккаунта.
func (s *Service) Complete(ctx context.Context, accountID, challengeID string, now time.Time) (*Result, error) {
	ch, err := s.store.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !ch.InWindow(now) {
		return nil, fmt.Errorf("%w: окно действия %s — %s",
			common.ErrChallengeInactive,
			ch.StartsAt.Format(time.RFC3339), ch.EndsAt.Format(time.RFC3339))
	}

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	multiplier := s.tunables.MultiplierFor(acc.LoginStreak)
	bonus := int64(float64(ch.BonusPoints) * multiplier)

	if err := s.store.ReserveCompletion(ctx, challengeID); err != nil {
		return nil, err
	}

	tx, created, err := s.ledger.AwardDetailed(ctx, ledger.AwardRequest{
		AccountID:   accountID,
		Amount:      bonus,
		Type:        ledger.TypeChallengeBonus,
		SourceType:  ledger.SourceChallenge,
		SourceID:    challengeID,
		Description: fmt.Sprintf("Челлендж «%s» выполнен", ch.Title),
	})
	if err != nil {
		if relErr := s.store.ReleaseCompletion(ctx, challengeID); relErr != nil {
			log.WithError(relErr).WithField("challenge_id", challengeID).
				Error("Не удалось вернуть слот выполнения")
		}
		return nil, fmt.Errorf("ошибка начисления бонуса челленджа: %w", err)
	}
	if !created {
		// Аккаунт уже завершал этот челлендж: слот занят впустую.
		if relErr := s.store.ReleaseCompletion(ctx, challengeID); relErr != nil {
			log.WithError(relErr).WithField("challenge_id", challengeID).
				Error("Не удалось вернуть слот выполнения")
		}
		return &Result{ChallengeID: challengeID, Awarded: tx.Amount, Multiplier: multiplier, Duplicate: true}, nil
	}

	log.WithFields(log.Fields{
		"account_id":   accountID,
		"challenge_id": challengeID,
		"bonus":        bonus,
		"multiplier":   multiplier,
	}).Info("Челлендж выполнен")

	return &Result{ChallengeID: challengeID, Awarded: bonus, Multiplier: multiplier}, nil
}

// ListActive возвращает челленджи, действующие в момент now.
func (s *Service) ListActive(ctx context.Context, now time.Time) ([]*Challenge, error) {
	return s.store.ListActive(ctx, now)
}

// Create добавляет челлендж в каталог.
func (s *Service) Create(ctx context.Context, ch *Challenge) error {
	if ch.BonusPoints <= 0 {
		return common.ErrInvalidAmount
	}
	if !ch.EndsAt.After(ch.StartsAt) {
		return fmt.Errorf("%w: окно действия пустое", common.ErrChallengeInactive)
	}
	return s.store.Create(ctx, ch)
}
