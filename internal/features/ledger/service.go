// Package ledger — service.go содержит бизнес-логику журнала:
// начисления, списания, ручные корректировки, история, сгорание.
// Все операции одного аккаунта сериализуются пер-аккаунтным замком;
// временные сбои хранилища повторяются ограниченное число раз.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"ggloop.io/loyalty-engine/internal/common"
)

// Service управляет журналом баллов.
type Service struct {
	store    Store
	locks    *common.AccountLocks
	attempts int           // Попыток записи при временном сбое
	backoff  time.Duration // Базовая задержка между попытками
	earnTTL  time.Duration // Срок жизни начислений (0 — бессрочно)
}

// NewService создаёт сервис журнала.
func NewService(store Store, attempts int, backoff time.Duration, earnTTLMonths int) *Service {
	if attempts <= 0 {
		attempts = 3
	}
	return &Service{
		store:    store,
		locks:    common.NewAccountLocks(),
		attempts: attempts,
		backoff:  backoff,
		earnTTL:  time.Duration(earnTTLMonths) * 30 * 24 * time.Hour,
	}
}

// AwardRequest описывает одно начисление или списание.
type AwardRequest struct {
	AccountID   string
	Amount      int64 // Со знаком: + начисление, − списание
	Type        string
	SourceType  string
	SourceID    string
	Description string
}

// Award проводит начисление или списание.
//
// Гарантии:
//   - атомарность: запись журнала и кэш баланса двигаются вместе;
//   - идемпотентность: повтор того же события возвращает прежнюю
//     запись без второго начисления (вызывающий ошибки не видит);
//   - списание ниже нуля отклоняется с ErrInsufficientBalance;
//   - временный сбой хранилища повторяется с нарастающей задержкой
//     и только потом отдаётся наружу.
func (s *Service) Award(ctx context.Context, req AwardRequest) (*Transaction, error) {
	rec, _, err := s.AwardDetailed(ctx, req)
	return rec, err
}

// append выполняет запись с ограниченным числом повторов.
func (s *Service) append(ctx context.Context, tx *Transaction) (*Transaction, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		rec, created, err := s.store.Append(ctx, tx)
		if err == nil {
			return rec, created, nil
		}
		if !errors.Is(err, common.ErrTransientStore) {
			return nil, false, err
		}
		lastErr = err
		log.WithError(err).WithFields(log.Fields{
			"account_id": tx.AccountID,
			"attempt":    attempt,
		}).Warn("Временный сбой хранилища, повторяем запись")
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	return nil, false, fmt.Errorf("запись не прошла после %d попыток: %w", s.attempts, lastErr)
}

// AwardDetailed — как Award, но дополнительно сообщает, была ли запись
// создана этим вызовом. Нужно вызывающим с побочными эффектами на
// «первый раз» (этапы рефералов, счётчики челленджей).
func (s *Service) AwardDetailed(ctx context.Context, req AwardRequest) (*Transaction, bool, error) {
	if req.Amount == 0 {
		return nil, false, common.ErrInvalidAmount
	}

	unlock := s.locks.Lock(req.AccountID)
	defer unlock()

	tx := &Transaction{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Type:        req.Type,
		SourceType:  req.SourceType,
		SourceID:    req.SourceID,
		Description: req.Description,
	}
	if req.Amount > 0 && s.earnTTL > 0 {
		expires := time.Now().Add(s.earnTTL)
		tx.ExpiresAt = &expires
	}

	rec, created, err := s.append(ctx, tx)
	if err != nil {
		return nil, false, err
	}
	if !created {
		// Повторная доставка события — отдаём прежний результат.
		log.WithFields(log.Fields{
			"account_id":  req.AccountID,
			"source_type": req.SourceType,
			"source_id":   req.SourceID,
			"type":        req.Type,
		}).Debug("Дубликат события, начисление пропущено")
		return rec, false, nil
	}

	log.WithFields(log.Fields{
		"account_id": req.AccountID,
		"amount":     req.Amount,
		"type":       req.Type,
		"balance":    rec.BalanceAfter,
	}).Debug("Транзакция записана")
	return rec, true, nil
}

// Spend списывает amount (положительное) баллов.
func (s *Service) Spend(ctx context.Context, accountID string, amount int64, txType, sourceType, sourceID, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	return s.Award(ctx, AwardRequest{
		AccountID:   accountID,
		Amount:      -amount,
		Type:        txType,
		SourceType:  sourceType,
		SourceID:    sourceID,
		Description: description,
	})
}

// Adjust проводит ручную корректировку (ревьюер). Сумма со знаком.
func (s *Service) Adjust(ctx context.Context, accountID string, amount int64, sourceID, description string) (*Transaction, error) {
	return s.Award(ctx, AwardRequest{
		AccountID:   accountID,
		Amount:      amount,
		Type:        TypeManualAdjustment,
		SourceType:  SourceManual,
		SourceID:    sourceID,
		Description: description,
	})
}

// History возвращает последние транзакции аккаунта.
func (s *Service) History(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.History(ctx, accountID, limit, offset)
}

// ExpiringPoints — сколько баллов сгорит в ближайшие within.
func (s *Service) ExpiringPoints(ctx context.Context, accountID string, within time.Duration) (int64, *time.Time, error) {
	return s.store.ExpiringPoints(ctx, accountID, time.Now().Add(within))
}

// SweepExpired запускает сгорание просроченных начислений.
// Вызывается кроном раз в сутки.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	total, err := s.store.SweepExpired(ctx, now)
	if err != nil {
		return total, fmt.Errorf("ошибка сгорания баллов: %w", err)
	}
	if total > 0 {
		log.WithField("points", total).Info("Просроченные баллы списаны")
	}
	return total, nil
}
