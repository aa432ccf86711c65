// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежечасный обход триггеров
// вовлечения и ежедневное сгорание просроченных баллов.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"ggloop.io/loyalty-engine/internal/features/account"
	"ggloop.io/loyalty-engine/internal/features/ledger"
	"ggloop.io/loyalty-engine/internal/features/retention"
	"ggloop.io/loyalty-engine/internal/notify"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron      *cron.Cron
	accounts  account.Store
	ledger    *ledger.Service
	retention *retention.Service
	notifier  notify.Notifier
}

// NewScheduler создаёт планировщик задач с московским часовым поясом.
func NewScheduler(accounts account.Store, ledgerService *ledger.Service, retentionService *retention.Service, notifier notify.Notifier) *Scheduler {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить Europe/Moscow, используем UTC+3")
		loc = time.FixedZone("MSK", 3*60*60)
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		accounts:  accounts,
		ledger:    ledgerService,
		retention: retentionService,
		notifier:  notifier,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Ежечасный обход триггеров вовлечения
	s.cron.AddFunc("0 * * * *", func() {
		log.Debug("[CRON] Обход триггеров вовлечения")
		if err := s.sweepTriggers(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка обхода триггеров")
		}
	})

	// Ежедневное сгорание просроченных баллов в 03:00 по Москве
	s.cron.AddFunc("0 3 * * *", func() {
		log.Info("[CRON] Сгорание просроченных баллов")
		total, err := s.ledger.SweepExpired(ctx, time.Now())
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка сгорания баллов")
			return
		}
		if total > 0 {
			s.send(ctx, fmt.Sprintf("Ночное сгорание: списано %d баллов", total))
		}
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен (Europe/Moscow)")
}

// sweepTriggers обходит аккаунты и отправляет советы уведомлений.
func (s *Scheduler) sweepTriggers(ctx context.Context) error {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("ошибка получения аккаунтов: %w", err)
	}

	sent := 0
	for _, acc := range accounts {
		triggers, err := s.retention.EngagementTriggers(ctx, acc.ID)
		if err != nil {
			log.WithError(err).WithField("account_id", acc.ID).
				Warn("[CRON] Не удалось посчитать триггеры")
			continue
		}
		for _, tr := range triggers {
			s.send(ctx, fmt.Sprintf("[%s/%s] %s: %s", tr.Type, tr.Priority, tr.AccountID, tr.Message))
			sent++
		}
	}
	if sent > 0 {
		log.WithField("count", sent).Info("[CRON] Триггеры вовлечения отправлены")
	}
	return nil
}

func (s *Scheduler) send(ctx context.Context, text string) {
	if err := s.notifier.Send(ctx, text); err != nil {
		log.WithError(err).Warn("Не удалось доставить уведомление")
	}
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
