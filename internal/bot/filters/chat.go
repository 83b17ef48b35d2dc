// Package filters пропускает к командам только чат оператора.
package filters

import (
	"context"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
)

// UnauthorizedText — ответ в любой чат, кроме чата оператора.
const UnauthorizedText = "⛔ Unauthorized"

// Sender — часть telego.Bot, нужная фильтру.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

type ChatFilter struct {
	operatorChatID int64
	sender         Sender
}

func NewChatFilter(operatorChatID int64, sender Sender) *ChatFilter {
	return &ChatFilter{operatorChatID: operatorChatID, sender: sender}
}

// CheckAccess — true только для сообщений из чата оператора с известным отправителем.
func (f *ChatFilter) CheckAccess(ctx context.Context, message *telego.Message) bool {
	if message == nil {
		log.WithField("component", "ChatFilter").Warn("nil message")
		return false
	}
	if f.operatorChatID == 0 {
		log.WithField("component", "ChatFilter").Error("operatorChatID is 0 (config bug)")
		return false
	}

	chatID := message.Chat.ID
	logger := log.WithFields(log.Fields{
		"component":        "ChatFilter",
		"chat_id":          chatID,
		"chat_type":        message.Chat.Type,
		"operator_chat_id": f.operatorChatID,
	})

	if chatID != f.operatorChatID {
		logger.Warn("deny: not operator chat")
		if _, err := f.sender.SendMessage(ctx, tu.Message(tu.ID(chatID), UnauthorizedText)); err != nil {
			logger.WithError(err).Warn("failed to send deny message")
		}
		return false
	}

	// без отправителя некого записать в журнал (анонимный админ, пост канала)
	if message.From == nil {
		logger.Warn("deny: nil message.From")
		return false
	}

	logger.WithField("user_id", message.From.ID).Debug("allow: operator chat")
	return true
}
