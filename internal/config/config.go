// Package config загружает конфигурацию движка из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
// Числовые таблицы движка (майлстоуны, веса, пороги) живут отдельно
// в tunables.go и при необходимости переопределяются YAML-файлом.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"engine"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"loyalty_engine"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// DB_DISABLED=true переключает движок на in-memory хранилища
	// (локальная разработка и тесты без PostgreSQL).
	DBDisabled bool `envconfig:"DB_DISABLED" default:"false"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Tunables ---
	// Путь к YAML с таблицами движка. Пусто — используются дефолты.
	TunablesPath string `envconfig:"TUNABLES_PATH" default:""`

	// --- Ledger ---
	// Сколько раз повторяем запись при временном сбое хранилища.
	LedgerRetryAttempts int `envconfig:"LEDGER_RETRY_ATTEMPTS" default:"3"`
	// Базовая задержка между повторами, миллисекунды.
	LedgerRetryBackoffMS int `envconfig:"LEDGER_RETRY_BACKOFF_MS" default:"100"`
	// Срок жизни начисленных баллов в месяцах (0 — баллы не сгорают).
	EarnTTLMonths int `envconfig:"EARN_TTL_MONTHS" default:"12"`

	// --- Reviewer (разбор алертов и ручные корректировки) ---
	// Argon2id-хеш ключа ревьюера в формате
	// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>.
	// Пусто — защищённые эндпоинты отключены.
	ReviewerKeyHash string `envconfig:"REVIEWER_KEY_HASH"`

	// --- Notifications ---
	// Telegram-канал для рекомендательных триггеров (стрик под угрозой,
	// риск оттока). Пустой токен — уведомления выключены.
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	NotifyChatID     int64  `envconfig:"NOTIFY_CHAT_ID"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if !c.DBDisabled && c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD не задан (или включите DB_DISABLED)")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.LedgerRetryAttempts <= 0 {
		return fmt.Errorf("LEDGER_RETRY_ATTEMPTS должен быть > 0")
	}
	if c.EarnTTLMonths < 0 {
		return fmt.Errorf("EARN_TTL_MONTHS не может быть отрицательным")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
