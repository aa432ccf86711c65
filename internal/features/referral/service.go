// Package referral — service.go содержит бизнес-логику реферального конвейера.
// Три этапа: регистрация (бонус обоим), первая активность (бонус рефереру),
// первый обмен (доля рефереру, связь завершается).
package referral

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/ledger"
)

// Service управляет реферальным конвейером.
type Service struct {
	store    Store
	ledger   *ledger.Service
	tunables *config.Tunables
	locks    *common.AccountLocks // Сериализация переходов по одной связи
}

// NewService создаёт новый сервис рефералов.
func NewService(store Store, ledgerService *ledger.Service, tunables *config.Tunables) *Service {
	return &Service{
		store:    store,
		ledger:   ledgerService,
		tunables: tunables,
		locks:    common.NewAccountLocks(),
	}
}

// OnSignup регистрирует приглашённого и начисляет бонус обеим сторонам.
//
// Приглашённый привязывается к рефереру навсегда: повторная регистрация
// с другим реферером — common.ErrDuplicateReferral. Самоприглашение
// отклоняется сразу. Повтор того же события с тем же реферером
// поглощается: недостающие начисления довыполняются, поэтому ретрай
// после частичного сбоя (связь записана, бонус не дошёл) безопасен.
func (s *Service) OnSignup(ctx context.Context, referrerID, referredID string) (*Link, error) {
	if referrerID == referredID {
		return nil, common.ErrSelfReferral
	}

	unlock := s.locks.LockPair(referrerID, referredID)
	defer unlock()

	existing, err := s.store.GetByReferred(ctx, referredID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.ReferrerID != referrerID {
			return nil, common.ErrDuplicateReferral
		}
		if err := s.awardSignupBonuses(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	now := time.Now()
	link := &Link{
		ReferrerID:  referrerID,
		ReferredID:  referredID,
		Status:      StatusActivated,
		Stage:       StageSignup,
		ActivatedAt: &now,
	}
	if err := s.store.Create(ctx, link); err != nil {
		return nil, err
	}
	// Связь уже записана: если начисление оборвётся, повтор события
	// зайдёт в ветку existing выше и доначислит недостающее.
	if err := s.awardSignupBonuses(ctx, link); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"referrer_id": referrerID,
		"referred_id": referredID,
		"bonus":       s.tunables.Referral.SignupBonus,
	}).Info("Реферальная связь активирована")

	return link, nil
}

// awardSignupBonuses проводит оба регистрационных начисления.
// Идемпотентно: счётчик выплат по связи растёт только на фактически
// созданные транзакции, повтор ничего не дублирует. Счётчик
// фиксируется после каждого начисления, чтобы обрыв между двумя
// начислениями не терял уже проведённое.
func (s *Service) awardSignupBonuses(ctx context.Context, link *Link) error {
	bonus := s.tunables.Referral.SignupBonus

	_, created, err := s.ledger.AwardDetailed(ctx, ledger.AwardRequest{
		AccountID:   link.ReferrerID,
		Amount:      bonus,
		Type:        ledger.TypeReferralSignup,
		SourceType:  ledger.SourceReferral,
		SourceID:    link.ReferredID,
		Description: "Реферальный бонус за приглашение",
	})
	if err != nil {
		return fmt.Errorf("ошибка начисления бонуса рефереру: %w", err)
	}
	if created {
		link.PointsAwarded += bonus
		if err := s.store.Update(ctx, link); err != nil {
			return fmt.Errorf("ошибка обновления счётчика выплат: %w", err)
		}
	}

	_, created, err = s.ledger.AwardDetailed(ctx, ledger.AwardRequest{
		AccountID:   link.ReferredID,
		Amount:      bonus,
		Type:        ledger.TypeReferredBonus,
		SourceType:  ledger.SourceReferral,
		SourceID:    link.ReferrerID,
		Description: "Приветственный бонус за регистрацию по приглашению",
	})
	if err != nil {
		return fmt.Errorf("ошибка начисления бонуса приглашённому: %w", err)
	}
	if created {
		link.PointsAwarded += bonus
		if err := s.store.Update(ctx, link); err != nil {
			return fmt.Errorf("ошибка обновления счётчика выплат: %w", err)
		}
	}
	return nil
}

// OnFirstActivity обрабатывает первую значимую активность приглашённого.
// Связь переходит на этап активности, реферер получает бонус.
// Если приглашённый никем не приглашён или этап уже пройден — no-op.
func (s *Service) OnFirstActivity(ctx context.Context, referredID string) error {
	unlock := s.locks.Lock(referredID)
	defer unlock()

	link, err := s.store.GetByReferred(ctx, referredID)
	if err != nil {
		return err
	}
	if link == nil || link.Stage >= StageActivity {
		return nil
	}

	bonus := s.tunables.Referral.ActivityBonus
	_, created, err := s.ledger.AwardDetailed(ctx, ledger.AwardRequest{
		AccountID:   link.ReferrerID,
		Amount:      bonus,
		Type:        ledger.TypeReferralActivity,
		SourceType:  ledger.SourceReferral,
		SourceID:    referredID,
		Description: "Бонус за активность приглашённого",
	})
	if err != nil {
		return fmt.Errorf("ошибка начисления бонуса за активность: %w", err)
	}

	link.Stage = StageActivity
	if created {
		link.PointsAwarded += bonus
	}
	if err := s.store.Update(ctx, link); err != nil {
		return fmt.Errorf("ошибка обновления этапа связи: %w", err)
	}

	log.WithFields(log.Fields{
		"referrer_id": link.ReferrerID,
		"referred_id": referredID,
	}).Info("Приглашённый проявил первую активность")

	return nil
}

// OnRedemption обрабатывает первый обмен баллов приглашённым.
// Реферер получает долю от потраченной суммы (с округлением вниз),
// связь завершается. Повторные обмены после завершения — no-op.
func (s *Service) OnRedemption(ctx context.Context, referredID string, pointsSpent int64) error {
	unlock := s.locks.Lock(referredID)
	defer unlock()

	link, err := s.store.GetByReferred(ctx, referredID)
	if err != nil {
		return err
	}
	if link == nil || link.Status == StatusCompleted {
		return nil
	}

	share := int64(float64(pointsSpent) * s.tunables.Referral.RedemptionShare)
	if share > 0 {
		_, created, err := s.ledger.AwardDetailed(ctx, ledger.AwardRequest{
			AccountID:   link.ReferrerID,
			Amount:      share,
			Type:        ledger.TypeReferralRedemptionShare,
			SourceType:  ledger.SourceReferral,
			SourceID:    referredID,
			Description: "Доля от первого обмена приглашённого",
		})
		if err != nil {
			return fmt.Errorf("ошибка начисления доли от обмена: %w", err)
		}
		if created {
			link.PointsAwarded += share
		}
	}

	now := time.Now()
	link.Status = StatusCompleted
	link.Stage = StageRedemption
	link.CompletedAt = &now
	if err := s.store.Update(ctx, link); err != nil {
		return fmt.Errorf("ошибка завершения связи: %w", err)
	}

	log.WithFields(log.Fields{
		"referrer_id": link.ReferrerID,
		"referred_id": referredID,
		"share":       share,
	}).Info("Реферальная связь завершена")

	return nil
}

// Stats возвращает агрегат по рефералам одного реферера.
func (s *Service) Stats(ctx context.Context, referrerID string) (*Stats, error) {
	links, err := s.store.ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalReferred: len(links)}
	for _, l := range links {
		if l.Status == StatusActivated || l.Status == StatusCompleted {
			stats.Activated++
		}
		if l.Status == StatusCompleted {
			stats.Completed++
		}
		stats.TotalEarned += l.PointsAwarded
	}
	return stats, nil
}
