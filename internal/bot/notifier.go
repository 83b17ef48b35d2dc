package bot

import (
	"context"
	"fmt"
	"time"

	tu "github.com/mymmrac/telego/telegoutil"

	"serotonyl.ru/payout-bot/internal/bot/filters"
)

const notifyTimeout = 10 * time.Second

// Notifier шлёт уведомления в чат оператора.
type Notifier struct {
	sender filters.Sender
	chatID int64
}

func NewNotifier(sender filters.Sender, chatID int64) *Notifier {
	return &Notifier{sender: sender, chatID: chatID}
}

// Notify отправляет текст. Отмена ctx вызывающего не обрывает отправку:
// ответ пользователю уже может быть отдан.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if _, err := n.sender.SendMessage(ctx, tu.Message(tu.ID(n.chatID), text)); err != nil {
		return fmt.Errorf("ошибка отправки уведомления оператору: %w", err)
	}
	return nil
}
