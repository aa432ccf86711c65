// Package streak — service.go содержит основную бизнес-логику стриков.
// Сервис обрабатывает события логина, двигает стрик и начисляет
// одноразовые майлстоун-бонусы через леджер.
package streak

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
	"ggloop.io/loyalty-engine/internal/features/ledger"
)

// Окна квалификации логина, в часах с предыдущего логина:
// меньше continueMin — та же сессия, стрик не меняется;
// [continueMin, continueMax) — стрик продолжается;
// от continueMax — стрик сгорает и начинается заново.
const (
	continueMinHours = 24
	continueMaxHours = 48
)

// Service управляет стрик-системой.
type Service struct {
	accounts account.Store
	ledger   *ledger.Service
	tunables *config.Tunables
	locks    *common.AccountLocks // Сериализация read-modify-write полей стрика
}

// NewService создаёт новый сервис стриков.
func NewService(accounts account.Store, ledgerService *ledger.Service, tunables *config.Tunables) *Service {
	return &Service{
		accounts: accounts,
		ledger:   ledgerService,
		tunables: tunables,
		locks:    common.NewAccountLocks(),
	}
}

// RecordLogin обрабатывает событие логина.
//
// Алгоритм:
//  1. Считаем Δ — часы с предыдущего логина.
//  2. Δ < 24 — та же сессия: стрик и рекорд не меняются, бонуса нет.
//  3. 24 ≤ Δ < 48 — стрик продолжается: newStreak = oldStreak + 1.
//  4. Δ ≥ 48 или логинов не было — стрик сбрасывается в 1.
//  5. Если новый стрик попал в таблицу майлстоунов — начисляем бонус
//     через леджер. Ключ идемпотентности — длина стрика: майлстоун
//     срабатывает ровно один раз даже при конкурирующих дублях логина.
func (s *Service) RecordLogin(ctx context.Context, accountID string, now time.Time) (*Result, error) {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	newStreak := 1
	if acc.LastLoginAt != nil {
		delta := common.HoursSince(*acc.LastLoginAt, now)
		switch {
		case delta < continueMinHours:
			// Та же сессия: обновляем только отметку времени.
			newStreak = acc.LoginStreak
			if newStreak < 1 {
				newStreak = 1
			}
			if err := s.accounts.UpdateLogin(ctx, accountID, newStreak, acc.LongestStreak, now); err != nil {
				return nil, err
			}
			return &Result{
				Streak:        newStreak,
				LongestStreak: acc.LongestStreak,
				Multiplier:    s.tunables.MultiplierFor(newStreak),
			}, nil
		case delta < continueMaxHours:
			newStreak = acc.LoginStreak + 1
		default:
			newStreak = 1
		}
	}

	longest := acc.LongestStreak
	isNewRecord := false
	if newStreak > longest {
		longest = newStreak
		isNewRecord = newStreak > 1
	}

	if err := s.accounts.UpdateLogin(ctx, accountID, newStreak, longest, now); err != nil {
		return nil, fmt.Errorf("ошибка обновления стрика: %w", err)
	}

	result := &Result{
		Streak:        newStreak,
		LongestStreak: longest,
		Multiplier:    s.tunables.MultiplierFor(newStreak),
		IsNewRecord:   isNewRecord,
	}

	bonus, ok := s.tunables.Milestones[newStreak]
	if !ok {
		return result, nil
	}

	// sourceID = длина стрика: второй проход той же длины (после сброса
	// и нового набора) бонус не даст — майлстоун одноразовый навсегда.
	tx, created, err := s.ledger.AwardDetailed(ctx, ledger.AwardRequest{
		AccountID:   accountID,
		Amount:      bonus,
		Type:        ledger.TypeLoginStreak,
		SourceType:  ledger.SourceStreak,
		SourceID:    strconv.Itoa(newStreak),
		Description: fmt.Sprintf("Майлстоун стрика: %d %s", newStreak, common.PluralizeDays(newStreak)),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка начисления майлстоун-бонуса: %w", err)
	}
	if created {
		result.MilestoneBonus = tx.Amount
		log.WithFields(log.Fields{
			"account_id": accountID,
			"streak":     newStreak,
			"bonus":      bonus,
		}).Info("Майлстоун стрика достигнут")
	}

	return result, nil
}

// MultiplierFor возвращает текущий множитель начислений для аккаунта.
func (s *Service) MultiplierFor(ctx context.Context, accountID string) (float64, error) {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return s.tunables.MultiplierFor(acc.LoginStreak), nil
}

// Next возвращает ближайший майлстоун аккаунта.
func (s *Service) Next(ctx context.Context, accountID string) (*NextMilestone, error) {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	nm := nextMilestoneFor(s.tunables, acc.LoginStreak)
	return &nm, nil
}
