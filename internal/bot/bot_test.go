package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/payout-bot/internal/bot/filters"
	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/features/admin"
	"serotonyl.ru/payout-bot/internal/features/confirm"
	"serotonyl.ru/payout-bot/internal/features/payouts"
)

const (
	operatorChat int64 = -100777
	operatorUser int64 = 5150
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *fakeSender) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, sentMessage{chatID: params.ChatID.ID, text: params.Text})
	return &telego.Message{}, nil
}

func (s *fakeSender) last(t *testing.T) sentMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	return s.sent[len(s.sent)-1]
}

// desk — заявки в памяти: и confirm.Payouts, и PayoutDesk.
type desk struct {
	mu        sync.Mutex
	requests  map[uuid.UUID]*payouts.Request
	balance   map[uuid.UUID]decimal.Decimal
	walletErr error
}

func newDesk() *desk {
	return &desk{requests: map[uuid.UUID]*payouts.Request{}, balance: map[uuid.UUID]decimal.Decimal{}}
}

func (d *desk) add(amount, balance int64) *payouts.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	req := &payouts.Request{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Amount:    decimal.NewFromInt(amount),
		Status:    payouts.StatusPending,
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	d.requests[req.ID] = req
	d.balance[req.UserID] = decimal.NewFromInt(balance)
	return req
}

func (d *desk) Get(_ context.Context, id uuid.UUID) (*payouts.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	req, ok := d.requests[id]
	if !ok {
		return nil, common.ErrPayoutNotFound
	}
	c := *req
	return &c, nil
}

func (d *desk) ConfirmManually(_ context.Context, id uuid.UUID, amount decimal.Decimal) (*payouts.Settlement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	req, ok := d.requests[id]
	if !ok || req.Status != payouts.StatusPending {
		return nil, common.ErrAlreadyProcessed
	}
	req.Status = payouts.StatusSuccess
	c := *req
	if d.walletErr != nil {
		return &payouts.Settlement{Payout: &c, WalletErr: d.walletErr}, nil
	}
	d.balance[req.UserID] = d.balance[req.UserID].Sub(amount)
	return &payouts.Settlement{Payout: &c, Debited: true}, nil
}

func (d *desk) ListPending(_ context.Context, _ time.Duration) ([]*payouts.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var list []*payouts.Request
	for _, r := range d.requests {
		if r.Status == payouts.StatusPending {
			c := *r
			list = append(list, &c)
		}
	}
	return list, nil
}

func (d *desk) FailManually(_ context.Context, id uuid.UUID, reason string) (*payouts.Settlement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	req, ok := d.requests[id]
	if !ok || req.Status != payouts.StatusPending {
		return nil, common.ErrAlreadyProcessed
	}
	if reason == "" {
		reason = "rejected by operator"
	}
	req.Status = payouts.StatusFailed
	req.FailureReason = &reason
	c := *req
	return &payouts.Settlement{Payout: &c}, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []admin.AuditEntry
}

func (a *memAudit) Record(_ context.Context, e admin.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

type harness struct {
	bot    *Bot
	sender *fakeSender
	desk   *desk
	audit  *memAudit
	store  *confirm.MemoryStore
}

func newHarness() *harness {
	h := &harness{sender: &fakeSender{}, desk: newDesk(), audit: &memAudit{}, store: confirm.NewMemoryStore()}
	confirmer := confirm.NewService(h.desk, h.store, h.audit, 10*time.Minute)
	h.bot = New(h.sender, confirmer, h.desk, h.audit, Options{
		OperatorChatID: operatorChat,
		WebhookSecret:  "tg-secret",
		BotUsername:    "PayoutDeskBot",
	})
	return h
}

func (h *harness) say(text string) {
	h.sayIn(operatorChat, text)
}

func (h *harness) sayIn(chatID int64, text string) {
	h.bot.HandleUpdate(context.Background(), telego.Update{Message: &telego.Message{
		Chat: telego.Chat{ID: chatID, Type: "supergroup"},
		From: &telego.User{ID: operatorUser, Username: "ops"},
		Text: text,
	}})
}

func TestConfirmFlow(t *testing.T) {
	h := newHarness()
	req := h.desk.add(500, 800)
	id := req.ID.String()

	h.say("/confirm_payout " + id)
	challenge := h.sender.last(t)
	assert.Equal(t, operatorChat, challenge.chatID)
	assert.Contains(t, challenge.text, "₹500")
	assert.Contains(t, challenge.text, id)
	assert.Contains(t, challenge.text, "YES "+id)

	h.say("YES " + id)
	assert.Equal(t, "✅ Payout "+id+" marked success, ₹500.00 debited", h.sender.last(t).text)
	assert.Equal(t, payouts.StatusSuccess, h.desk.requests[req.ID].Status)
	assert.Equal(t, "300", h.desk.balance[req.UserID].String())

	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, admin.TelegramActor(operatorUser), h.audit.entries[0].Actor)

	// повтор YES — сессии уже нет
	h.say("YES " + id)
	assert.Equal(t, "❌ No pending confirmation found for "+id, h.sender.last(t).text)
	assert.Equal(t, "300", h.desk.balance[req.UserID].String())
}

func TestYesWithoutConfirm(t *testing.T) {
	h := newHarness()

	h.say("YES xyz789")
	assert.Equal(t, "❌ No pending confirmation found for xyz789", h.sender.last(t).text)

	id := uuid.NewString()
	h.say("yes " + id)
	assert.Equal(t, "❌ No pending confirmation found for "+id, h.sender.last(t).text)
}

func TestConfirmUnknownOrProcessed(t *testing.T) {
	h := newHarness()
	h.say("/confirm_payout abc123")
	assert.Equal(t, "❌ Payout abc123 not found or already processed", h.sender.last(t).text)

	req := h.desk.add(100, 100)
	h.desk.requests[req.ID].Status = payouts.StatusSuccess
	h.say("/confirm_payout " + req.ID.String())
	assert.Contains(t, h.sender.last(t).text, "not found or already processed")
	assert.Equal(t, 0, h.store.Len())
}

func TestConfirmPartialSuccessWarning(t *testing.T) {
	h := newHarness()
	req := h.desk.add(500, 100)
	h.desk.walletErr = common.ErrInsufficientBalance
	id := req.ID.String()

	h.say("/confirm_payout " + id)
	h.say("YES " + id)
	text := h.sender.last(t).text
	assert.True(t, strings.HasPrefix(text, "⚠️ Partial success"), text)
	assert.Equal(t, payouts.StatusSuccess, h.desk.requests[req.ID].Status)
}

func TestUnauthorizedChat(t *testing.T) {
	h := newHarness()
	req := h.desk.add(500, 500)

	h.sayIn(-100999, "/confirm_payout "+req.ID.String())
	msg := h.sender.last(t)
	assert.Equal(t, int64(-100999), msg.chatID)
	assert.Equal(t, filters.UnauthorizedText, msg.text)
	assert.Equal(t, 0, h.store.Len())
}

func TestHelpUnknownAndOtherBot(t *testing.T) {
	h := newHarness()

	h.say("/help")
	assert.Contains(t, h.sender.last(t).text, "/confirm_payout <id>")
	assert.Contains(t, h.sender.last(t).text, "10 minutes")

	h.say("/refund_everything")
	assert.Equal(t, "❓ Unknown command. Send /help", h.sender.last(t).text)

	h.say("good morning")
	assert.Equal(t, "❓ Unknown command. Send /help", h.sender.last(t).text)

	n := len(h.sender.sent)
	h.say("/help@SomeOtherBot")
	assert.Len(t, h.sender.sent, n)
}

func TestFailPayoutCommand(t *testing.T) {
	h := newHarness()
	req := h.desk.add(250, 250)
	id := req.ID.String()

	h.say("/fail_payout " + id + " wrong UPI handle")
	assert.Equal(t, "❌ Payout "+id+" marked failed: wrong UPI handle", h.sender.last(t).text)
	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, admin.ActionFailPayout, h.audit.entries[0].Action)

	h.say("/fail_payout " + id)
	assert.Contains(t, h.sender.last(t).text, "not found or already processed")
}

func TestPendingAndCard(t *testing.T) {
	h := newHarness()
	h.say("/pending")
	assert.Equal(t, "✅ No pending payouts", h.sender.last(t).text)

	req := h.desk.add(1500, 2000)
	h.say("/pending")
	assert.Contains(t, h.sender.last(t).text, "1 payout pending, ₹1,500.00 total")
	assert.Contains(t, h.sender.last(t).text, req.ID.String())

	h.say("/payout " + req.ID.String())
	card := h.sender.last(t).text
	assert.Contains(t, card, "Status: pending")
	assert.Contains(t, card, "₹1,500.00")

	h.say("/payout " + uuid.NewString())
	assert.Contains(t, h.sender.last(t).text, "not found")
}

func TestWebhookSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newHarness()
	r := gin.New()
	r.POST("/webhooks/telegram", h.bot.HandleWebhook)

	body := `{"update_id":1,"message":{"message_id":7,"date":1700000000,"chat":{"id":-100777,"type":"supergroup"},"from":{"id":5150,"is_bot":false,"first_name":"Ops"},"text":"/help"}}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, h.sender.sent)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	req.Header.Set(HeaderSecretToken, "tg-secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, h.sender.last(t).text, "Payout operator commands")
}

func TestNotifier(t *testing.T) {
	s := &fakeSender{}
	n := NewNotifier(s, operatorChat)
	require.NoError(t, n.Notify(context.Background(), "🆕 Withdrawal request"))
	assert.Equal(t, sentMessage{chatID: operatorChat, text: "🆕 Withdrawal request"}, s.last(t))

	s.err = errors.New("telegram down")
	assert.Error(t, n.Notify(context.Background(), "x"))
}
