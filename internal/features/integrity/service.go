// Package integrity — service.go содержит ядро движка рисков.
// Ядро ничего не знает о конкретных детекторах: оно прогоняет сигнал
// через реестр, складывает вклады, классифицирует серьёзность и
// решает, создавать ли алерт.
package integrity

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
)

// Фоновые детекторы прогоняются для каждого сигнала в дополнение
// к основному: возраст аккаунта и скорость набора баллов повышают
// риск любой аномалии.
var baselineDetectors = []string{TypeAccountAgeNew, TypeRapidProgression}

// Service — движок оценки рисков. Stateless между вызовами,
// безопасен для параллельного использования.
type Service struct {
	store    Store
	accounts account.Store
	registry *Registry
	tunables *config.Tunables
}

// NewService создаёт новый сервис рисков.
func NewService(store Store, accounts account.Store, registry *Registry, tunables *config.Tunables) *Service {
	return &Service{
		store:    store,
		accounts: accounts,
		registry: registry,
		tunables: tunables,
	}
}

// Evaluate оценивает поведенческий сигнал.
//
// Score складывается из вклада основного детектора сигнала и фоновых
// детекторов, ограничивается [0,100] и классифицируется по полосам
// серьёзности. Алерт создаётся только от полосы medium и выше:
// подпороговые оценки отбрасываются без следа, чтобы хранилище
// не росло на каждом безобидном событии.
//
// Возвращает созданный алерт или nil, если сигнал подпороговый.
func (s *Service) Evaluate(ctx context.Context, sig *Signal) (*Alert, error) {
	scorer, err := s.registry.Get(sig.DetectionType)
	if err != nil {
		return nil, err
	}

	acc, err := s.accounts.Get(ctx, sig.AccountID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	total := s.runScorer(ctx, scorer, sig.DetectionType, acc, sig.Payload, now)
	for _, t := range baselineDetectors {
		if t == sig.DetectionType {
			continue
		}
		bg, err := s.registry.Get(t)
		if err != nil {
			continue
		}
		total += s.runScorer(ctx, bg, t, acc, sig.Payload, now)
	}

	score := common.Clamp(int(total), 0, 100)
	severity := s.tunables.Severity.SeverityFor(score)
	if score < s.tunables.Severity.Medium {
		log.WithFields(log.Fields{
			"account_id":     sig.AccountID,
			"detection_type": sig.DetectionType,
			"score":          score,
		}).Debug("Сигнал подпороговый, алерт не создан")
		return nil, nil
	}

	alert := &Alert{
		AccountID:     sig.AccountID,
		DetectionType: sig.DetectionType,
		Severity:      severity,
		RiskScore:     score,
		SourceType:    sig.SourceType,
		SourceID:      sig.SourceID,
		Payload:       sig.Payload,
		Status:        StatusPending,
	}
	if err := s.store.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("ошибка сохранения алерта: %w", err)
	}

	log.WithFields(log.Fields{
		"alert_id":       alert.ID,
		"account_id":     sig.AccountID,
		"detection_type": sig.DetectionType,
		"score":          score,
		"severity":       severity,
	}).Warn("Создан алерт о подозрительной активности")

	return alert, nil
}

func (s *Service) runScorer(ctx context.Context, scorer Scorer, detectionType string, acc *account.Account, payload map[string]any, now time.Time) float64 {
	w, ok := s.tunables.Detectors[detectionType]
	if !ok {
		return 0
	}
	return scorer(ctx, Input{Account: acc, Payload: payload, Weights: w, Now: now})
}

// Resolve выполняет действие ревьюера над алертом.
// Допустим единственный переход: pending → {dismissed, confirmed,
// escalated}; всё остальное — ErrInvalidTransition. Алерт при этом
// не удаляется, а остаётся для аудита и статистики.
func (s *Service) Resolve(ctx context.Context, alertID, action string) (*Alert, error) {
	var target string
	switch action {
	case ActionDismiss:
		target = StatusDismissed
	case ActionConfirm:
		target = StatusConfirmed
	case ActionEscalate:
		target = StatusEscalated
	default:
		return nil, fmt.Errorf("%w: неизвестное действие %q", common.ErrInvalidTransition, action)
	}

	alert, err := s.store.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status != StatusPending {
		return nil, fmt.Errorf("%w: алерт уже в статусе %q", common.ErrInvalidTransition, alert.Status)
	}

	now := time.Now()
	alert.Status = target
	alert.ResolvedAt = &now
	if err := s.store.UpdateStatus(ctx, alert); err != nil {
		return nil, fmt.Errorf("ошибка разбора алерта: %w", err)
	}

	log.WithFields(log.Fields{
		"alert_id": alertID,
		"action":   action,
	}).Info("Алерт разобран")

	return alert, nil
}

// List возвращает алерты с фильтрами по статусу и аккаунту.
func (s *Service) List(ctx context.Context, status, accountID string, limit int) ([]*Alert, error) {
	return s.store.List(ctx, status, accountID, limit)
}

// Stats возвращает агрегаты по типам детекции.
func (s *Service) Stats(ctx context.Context) ([]*TypeStats, error) {
	return s.store.Stats(ctx)
}
