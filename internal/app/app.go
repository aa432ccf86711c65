// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул (или in-memory хранилища),
// сервисы движка, HTTP-поверхность и планировщик, и собирает всё
// в один объект App.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"ggloop.io/loyalty-engine/internal/api"
	"ggloop.io/loyalty-engine/internal/config"
	"ggloop.io/loyalty-engine/internal/db/postgres"
	"ggloop.io/loyalty-engine/internal/features/account"
	"ggloop.io/loyalty-engine/internal/features/challenge"
	"ggloop.io/loyalty-engine/internal/features/integrity"
	"ggloop.io/loyalty-engine/internal/features/ledger"
	"ggloop.io/loyalty-engine/internal/features/referral"
	"ggloop.io/loyalty-engine/internal/features/retention"
	"ggloop.io/loyalty-engine/internal/features/reward"
	"ggloop.io/loyalty-engine/internal/features/streak"
	"ggloop.io/loyalty-engine/internal/jobs"
	"ggloop.io/loyalty-engine/internal/notify"
)

// App содержит все компоненты приложения.
type App struct {
	HTTP      *http.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool // nil в режиме DB_DISABLED
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Таблицы движка ===
	tunables, err := config.LoadTunables(cfg.TunablesPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки таблиц движка: %w", err)
	}

	// === 2. Хранилища ===
	var (
		pool           *pgxpool.Pool
		accountStore   account.Store
		ledgerStore    ledger.Store
		referralStore  referral.Store
		alertStore     integrity.Store
		rewardStore    reward.Store
		challengeStore challenge.Store
	)
	if cfg.DBDisabled {
		log.Warn("DB_DISABLED: движок работает на in-memory хранилищах")
		accounts := account.NewMemory()
		accountStore = accounts
		ledgerStore = ledger.NewMemory(accounts)
		referralStore = referral.NewMemory()
		alertStore = integrity.NewMemory()
		rewardStore = reward.NewMemory()
		challengeStore = challenge.NewMemory()
	} else {
		pool, err = postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool, "migrations"); err != nil {
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		accountStore = account.NewRepository(pool)
		ledgerStore = ledger.NewRepository(pool)
		referralStore = referral.NewRepository(pool)
		alertStore = integrity.NewRepository(pool)
		rewardStore = reward.NewRepository(pool)
		challengeStore = challenge.NewRepository(pool)
	}

	// === 3. Сервисы ===
	ledgerService := ledger.NewService(ledgerStore,
		cfg.LedgerRetryAttempts,
		time.Duration(cfg.LedgerRetryBackoffMS)*time.Millisecond,
		cfg.EarnTTLMonths)
	streakService := streak.NewService(accountStore, ledgerService, tunables)
	referralService := referral.NewService(referralStore, ledgerService, tunables)
	integrityService := integrity.NewService(alertStore, accountStore, integrity.NewRegistry(), tunables)
	retentionService := retention.NewService(accountStore, rewardStore, tunables)
	rewardService := reward.NewService(rewardStore, ledgerService, referralService)
	challengeService := challenge.NewService(challengeStore, accountStore, ledgerService, tunables)

	// === 4. Канал уведомлений ===
	var notifier notify.Notifier = notify.Nop{}
	if cfg.TelegramBotToken != "" && cfg.NotifyChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.NotifyChatID)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации уведомлений: %w", err)
		}
		notifier = tg
		log.Info("Telegram-уведомления включены")
	}

	// === 5. HTTP-поверхность ===
	server := api.NewServer(accountStore, ledgerService, streakService,
		referralService, integrityService, retentionService,
		rewardService, challengeService, cfg)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(accountStore, ledgerService, retentionService, notifier)

	return &App{
		HTTP:      httpServer,
		Scheduler: scheduler,
		DB:        pool,
	}, nil
}
