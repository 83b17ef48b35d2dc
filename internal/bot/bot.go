// Package bot — канал оператора в Telegram: приём вебхука, разбор команд
// и двухшаговое подтверждение выплат.
package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/bot/filters"
	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/features/admin"
	"serotonyl.ru/payout-bot/internal/features/confirm"
	"serotonyl.ru/payout-bot/internal/features/payouts"
	"serotonyl.ru/payout-bot/internal/middleware"
)

// HeaderSecretToken — заголовок, в который Telegram кладёт secret_token из setWebhook.
const HeaderSecretToken = "X-Telegram-Bot-Api-Secret-Token"

const pendingListLimit = 20

const helpText = `Payout operator commands:
/confirm_payout <id> — start confirming a payout
YES <id> — finish the confirmation (within %s)
/payout <id> — payout status
/pending — pending payouts
/fail_payout <id> <reason> — mark a payout failed and refund the wallet
/help — this list`

// Confirmer — двухшаговое подтверждение (confirm.Service).
type Confirmer interface {
	Begin(ctx context.Context, payoutID uuid.UUID, operatorID int64) (*confirm.Session, error)
	Confirm(ctx context.Context, payoutID uuid.UUID, operatorID int64) (*payouts.Settlement, error)
	TTL() time.Duration
}

// PayoutDesk — чтение заявок и административный отказ (payouts.Service).
type PayoutDesk interface {
	Get(ctx context.Context, id uuid.UUID) (*payouts.Request, error)
	ListPending(ctx context.Context, olderThan time.Duration) ([]*payouts.Request, error)
	FailManually(ctx context.Context, id uuid.UUID, reason string) (*payouts.Settlement, error)
}

type AuditLog interface {
	Record(ctx context.Context, e admin.AuditEntry) error
}

// Bot обрабатывает апдейты из чата оператора.
type Bot struct {
	sender        filters.Sender
	chatFilter    *filters.ChatFilter
	parser        *CommandParser
	confirm       Confirmer
	payouts       PayoutDesk
	audit         AuditLog
	webhookSecret string
	loc           *time.Location
}

// Options — параметры канала оператора.
type Options struct {
	OperatorChatID int64
	WebhookSecret  string
	BotUsername    string
	Location       *time.Location
}

func New(sender filters.Sender, c Confirmer, p PayoutDesk, audit AuditLog, opts Options) *Bot {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		sender:        sender,
		chatFilter:    filters.NewChatFilter(opts.OperatorChatID, sender),
		parser:        NewCommandParser(opts.BotUsername),
		confirm:       c,
		payouts:       p,
		audit:         audit,
		webhookSecret: opts.WebhookSecret,
		loc:           loc,
	}
}

// HandleWebhook — POST /webhooks/telegram.
func (b *Bot) HandleWebhook(c *gin.Context) {
	token := c.GetHeader(HeaderSecretToken)
	if subtle.ConstantTimeCompare([]byte(token), []byte(b.webhookSecret)) != 1 {
		log.WithFields(log.Fields{"component": "telegram_webhook", "ip": c.ClientIP()}).Warn("неверный secret token")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var update telego.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		log.WithError(err).Warn("не удалось разобрать апдейт Telegram")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}

	b.HandleUpdate(c.Request.Context(), update)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// HandleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) HandleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic()

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}

	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(ctx, message) {
		return
	}

	chatID := message.Chat.ID
	operatorID := message.From.ID

	cmd, args, isCommand, addressed := b.parser.ParseCommand(message.Text)
	if !addressed {
		return
	}
	log.WithFields(log.Fields{
		"isCommand": isCommand,
		"cmd":       cmd,
		"args":      args,
	}).Debug("parsed command")

	if !isCommand {
		b.sendMessage(ctx, chatID, "❓ Unknown command. Send /help")
		return
	}
	b.routeCommand(ctx, chatID, operatorID, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, operatorID int64, cmd string, args []string) {
	switch cmd {
	case "start", "help":
		b.sendMessage(ctx, chatID, fmt.Sprintf(helpText, formatTTL(b.confirm.TTL())))

	case "confirm_payout":
		b.handleConfirmPayout(ctx, chatID, operatorID, args)

	case "yes":
		b.handleYes(ctx, chatID, operatorID, args)

	case "payout":
		b.handlePayoutCard(ctx, chatID, args)

	case "pending":
		b.handlePending(ctx, chatID)

	case "fail_payout":
		b.handleFailPayout(ctx, chatID, operatorID, args)

	default:
		b.sendMessage(ctx, chatID, "❓ Unknown command. Send /help")
	}
}

// /confirm_payout <id>
func (b *Bot) handleConfirmPayout(ctx context.Context, chatID, operatorID int64, args []string) {
	if len(args) != 1 {
		b.sendMessage(ctx, chatID, "Usage: /confirm_payout <payout_id>")
		return
	}
	raw := args[0]
	id, err := uuid.Parse(raw)
	if err != nil {
		b.sendMessage(ctx, chatID, notFoundText(raw))
		return
	}

	sess, err := b.confirm.Begin(ctx, id, operatorID)
	switch {
	case errors.Is(err, common.ErrAlreadyProcessed):
		b.sendMessage(ctx, chatID, notFoundText(raw))
		return
	case err != nil:
		b.internalError(ctx, chatID, err, "confirm_payout")
		return
	}

	b.sendMessage(ctx, chatID, fmt.Sprintf(
		"🔐 Confirm payout %s\nAmount: %s\nUser: %s\n\nReply YES %s within %s to mark it paid.",
		sess.PayoutID, common.FormatINR(sess.Amount), sess.UserID, sess.PayoutID, formatTTL(b.confirm.TTL()),
	))
}

// YES <id>
func (b *Bot) handleYes(ctx context.Context, chatID, operatorID int64, args []string) {
	if len(args) != 1 {
		b.sendMessage(ctx, chatID, "Usage: YES <payout_id>")
		return
	}
	raw := args[0]
	id, err := uuid.Parse(raw)
	if err != nil {
		b.sendMessage(ctx, chatID, noConfirmationText(raw))
		return
	}

	st, err := b.confirm.Confirm(ctx, id, operatorID)
	switch {
	case errors.Is(err, common.ErrNoConfirmation):
		b.sendMessage(ctx, chatID, noConfirmationText(raw))
		return
	case errors.Is(err, common.ErrConfirmationExpired):
		b.sendMessage(ctx, chatID, fmt.Sprintf("⌛ Confirmation for %s expired, send /confirm_payout %s again", raw, raw))
		return
	case errors.Is(err, common.ErrAlreadyProcessed):
		b.sendMessage(ctx, chatID, notFoundText(raw))
		return
	case err != nil:
		b.internalError(ctx, chatID, err, "yes")
		return
	}

	amount := common.FormatINR(st.Payout.Amount)
	switch {
	case st.WalletErr != nil:
		b.sendMessage(ctx, chatID, fmt.Sprintf(
			"⚠️ Partial success: payout %s is marked success, but debiting %s from the wallet failed: %v\nReconcile the wallet manually.",
			id, amount, st.WalletErr,
		))
	case st.Debited:
		b.sendMessage(ctx, chatID, fmt.Sprintf("✅ Payout %s marked success, %s debited", id, amount))
	default:
		b.sendMessage(ctx, chatID, fmt.Sprintf("✅ Payout %s marked success, %s was already debited at dispatch", id, amount))
	}
}

// /payout <id>
func (b *Bot) handlePayoutCard(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		b.sendMessage(ctx, chatID, "Usage: /payout <payout_id>")
		return
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		b.sendMessage(ctx, chatID, fmt.Sprintf("❌ Payout %s not found", args[0]))
		return
	}
	req, err := b.payouts.Get(ctx, id)
	if errors.Is(err, common.ErrPayoutNotFound) {
		b.sendMessage(ctx, chatID, fmt.Sprintf("❌ Payout %s not found", args[0]))
		return
	}
	if err != nil {
		b.internalError(ctx, chatID, err, "payout")
		return
	}
	b.sendMessage(ctx, chatID, b.payoutCard(req))
}

func (b *Bot) payoutCard(req *payouts.Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Payout %s\n", statusIcon(req.Status), req.ID)
	fmt.Fprintf(&sb, "Status: %s\n", req.Status)
	fmt.Fprintf(&sb, "Amount: %s\n", common.FormatINR(req.Amount))
	fmt.Fprintf(&sb, "User: %s\n", req.UserID)
	fmt.Fprintf(&sb, "Created: %s", common.FormatDateTime(req.CreatedAt, b.loc))
	if req.ProcessedAt != nil {
		fmt.Fprintf(&sb, "\nProcessed: %s", common.FormatDateTime(*req.ProcessedAt, b.loc))
	}
	if req.ProcessorRef != nil {
		fmt.Fprintf(&sb, "\nRazorpay: %s", *req.ProcessorRef)
	}
	if req.FailureReason != nil {
		fmt.Fprintf(&sb, "\nReason: %s", *req.FailureReason)
	}
	return sb.String()
}

// /pending
func (b *Bot) handlePending(ctx context.Context, chatID int64) {
	list, err := b.payouts.ListPending(ctx, 0)
	if err != nil {
		b.internalError(ctx, chatID, err, "pending")
		return
	}
	if len(list) == 0 {
		b.sendMessage(ctx, chatID, "✅ No pending payouts")
		return
	}

	total := decimal.Zero
	for _, req := range list {
		total = total.Add(req.Amount)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "⏳ %s pending, %s total\n", common.Pluralize(len(list), "payout", "payouts"), common.FormatINR(total))
	for i, req := range list {
		if i == pendingListLimit {
			fmt.Fprintf(&sb, "\n…and %d more", len(list)-pendingListLimit)
			break
		}
		fmt.Fprintf(&sb, "\n%s — %s (%s)", req.ID, common.FormatINR(req.Amount), common.FormatDateTime(req.CreatedAt, b.loc))
	}
	b.sendMessage(ctx, chatID, sb.String())
}

// /fail_payout <id> <reason…>
func (b *Bot) handleFailPayout(ctx context.Context, chatID, operatorID int64, args []string) {
	if len(args) < 1 {
		b.sendMessage(ctx, chatID, "Usage: /fail_payout <payout_id> <reason>")
		return
	}
	raw := args[0]
	id, err := uuid.Parse(raw)
	if err != nil {
		b.sendMessage(ctx, chatID, notFoundText(raw))
		return
	}
	reason := strings.Join(args[1:], " ")

	st, err := b.payouts.FailManually(ctx, id, reason)
	switch {
	case errors.Is(err, common.ErrAlreadyProcessed), errors.Is(err, common.ErrPayoutNotFound):
		b.sendMessage(ctx, chatID, notFoundText(raw))
		return
	case err != nil:
		b.internalError(ctx, chatID, err, "fail_payout")
		return
	}

	finalReason := ""
	if st.Payout.FailureReason != nil {
		finalReason = *st.Payout.FailureReason
	}
	if err := b.audit.Record(ctx, admin.AuditEntry{
		Actor:    admin.TelegramActor(operatorID),
		Action:   admin.ActionFailPayout,
		PayoutID: &st.Payout.ID,
		UserID:   &st.Payout.UserID,
		Amount:   decimal.NewNullDecimal(st.Payout.Amount),
		Details:  "reason=" + finalReason,
	}); err != nil {
		log.WithError(err).WithField("payout_id", id).Error("Не удалось записать отказ в журнал")
	}

	text := fmt.Sprintf("❌ Payout %s marked failed: %s", id, finalReason)
	if st.Refunded {
		text += fmt.Sprintf("\n%s returned to the wallet", common.FormatINR(st.Payout.Amount))
	}
	b.sendMessage(ctx, chatID, text)
}

func (b *Bot) internalError(ctx context.Context, chatID int64, err error, cmd string) {
	log.WithError(err).WithField("cmd", cmd).Error("Ошибка обработки команды")
	b.sendMessage(ctx, chatID, "⚠️ Internal error, try again later")
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := b.sender.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func notFoundText(id string) string {
	return fmt.Sprintf("❌ Payout %s not found or already processed", id)
}

func noConfirmationText(id string) string {
	return fmt.Sprintf("❌ No pending confirmation found for %s", id)
}

func statusIcon(s payouts.Status) string {
	switch s {
	case payouts.StatusSuccess:
		return "✅"
	case payouts.StatusFailed:
		return "❌"
	default:
		return "⏳"
	}
}

func formatTTL(d time.Duration) string {
	if d%time.Minute == 0 {
		return common.Pluralize(int(d/time.Minute), "minute", "minutes")
	}
	return d.String()
}
