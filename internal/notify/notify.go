// Package notify доставляет рекомендательные уведомления движка
// внешним потребителям. Движок только советует; этот пакет — один
// из возможных каналов доставки (Telegram-канал операторов).
package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
)

// Notifier — канал доставки рекомендательных уведомлений.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Telegram отправляет уведомления в Telegram-чат операторов.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
}

// NewTelegram создаёт Telegram-канал уведомлений.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Send отправляет текст в чат операторов.
func (t *Telegram) Send(ctx context.Context, text string) error {
	_, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(t.chatID), text))
	if err != nil {
		return fmt.Errorf("ошибка отправки уведомления: %w", err)
	}
	return nil
}

// Nop — заглушка для запуска без настроенного канала.
// Уведомления пишутся только в лог.
type Nop struct{}

// Send логирует текст и ничего не отправляет.
func (Nop) Send(ctx context.Context, text string) error {
	log.WithField("text", text).Debug("Уведомление (канал не настроен)")
	return nil
}
