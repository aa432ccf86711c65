// Package integrity — registry.go содержит реестр типов детекции.
// Добавление детектора — регистрация новой записи, ядро движка
// не меняется.
package integrity

import (
	"context"
	"time"

	"ggloop.io/loyalty-engine/internal/common"
	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/features/account"
)

// Input — всё, что нужно скореру для детерминированной оценки:
// аккаунт на момент сигнала, непрозрачный payload и настройки веса.
type Input struct {
	Account *account.Account
	Payload map[string]any
	Weights config.DetectorWeights
	Now     time.Time
}

// Scorer — функция оценки одного типа детекции.
// Возвращает вклад в риск-score; 0 означает «подозрений нет».
type Scorer func(ctx context.Context, in Input) float64

// Registry — реестр скореров по тегу типа детекции.
// Заполняется при старте, дальше только читается.
type Registry struct {
	scorers map[string]Scorer
}

// NewRegistry создаёт реестр со встроенными детекторами.
func NewRegistry() *Registry {
	r := &Registry{scorers: make(map[string]Scorer)}
	r.Register(TypeDuplicateSubmission, scoreDuplicateSubmission)
	r.Register(TypeImpossibleTiming, scoreImpossibleTiming)
	r.Register(TypeIPMismatch, scoreIPMismatch)
	r.Register(TypePatternAnomaly, scorePatternAnomaly)
	r.Register(TypeAccountAgeNew, scoreAccountAge)
	r.Register(TypeRapidProgression, scoreRapidProgression)
	return r
}

// Register регистрирует скорер для типа детекции.
func (r *Registry) Register(detectionType string, scorer Scorer) {
	r.scorers[detectionType] = scorer
}

// Get возвращает скорер или ErrUnknownDetection.
func (r *Registry) Get(detectionType string) (Scorer, error) {
	s, ok := r.scorers[detectionType]
	if !ok {
		return nil, common.ErrUnknownDetection
	}
	return s, nil
}
