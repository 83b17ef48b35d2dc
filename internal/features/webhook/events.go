// Package webhook принимает вебхуки Razorpay: проверяет подпись и раскладывает
// события на покупки курсов и статусы выплат.
package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/features/payouts"
	"serotonyl.ru/payout-bot/internal/features/referrals"
)

// События, которые мы обрабатываем. Остальные подтверждаем и пропускаем.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
	EventPayoutProcessed = "payout.processed"
	EventPayoutFailed    = "payout.failed"
	EventPayoutReversed  = "payout.reversed"
)

// VerifySignature сверяет X-Razorpay-Signature: hex(HMAC-SHA256(body, secret)).
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Event — разобранный вебхук. Заполнено не больше одного из Purchase / Payout;
// оба nil — событие нам не интересно.
type Event struct {
	Name     string
	Purchase *referrals.Purchase
	Payout   *payouts.ProcessorUpdate
}

type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Payout *struct {
			Entity payoutEntity `json:"entity"`
		} `json:"payout"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID      string          `json:"id"`
	Amount  int64           `json:"amount"` // пайсы
	OrderID string          `json:"order_id"`
	Notes   json.RawMessage `json:"notes"`
}

type payoutEntity struct {
	ID            string          `json:"id"`
	ReferenceID   string          `json:"reference_id"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failure_reason"`
	Notes         json.RawMessage `json:"notes"`
	StatusDetails *struct {
		Description string `json:"description"`
	} `json:"status_details"`
}

// Parse разбирает тело вебхука.
func Parse(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: no event name", common.ErrMalformedEvent)
	}

	ev := &Event{Name: env.Event}
	switch env.Event {
	case EventPaymentCaptured, EventOrderPaid:
		if env.Payload.Payment == nil {
			return nil, fmt.Errorf("%w: %s without payment entity", common.ErrMalformedEvent, env.Event)
		}
		p, err := purchaseFrom(env.Payload.Payment.Entity)
		if err != nil {
			return nil, err
		}
		ev.Purchase = p

	case EventPayoutProcessed, EventPayoutFailed, EventPayoutReversed:
		if env.Payload.Payout == nil {
			return nil, fmt.Errorf("%w: %s without payout entity", common.ErrMalformedEvent, env.Event)
		}
		ev.Payout = payoutUpdateFrom(env.Event, env.Payload.Payout.Entity)
	}
	return ev, nil
}

func purchaseFrom(e paymentEntity) (*referrals.Purchase, error) {
	notes := decodeNotes(e.Notes)
	userID, err := uuid.Parse(notes["user_id"])
	if err != nil || e.ID == "" {
		return nil, fmt.Errorf("%w: payment %q without user_id note", common.ErrMalformedEvent, e.ID)
	}
	return &referrals.Purchase{
		PaymentID: e.ID,
		OrderID:   e.OrderID,
		UserID:    userID,
		CourseID:  notes["course_id"],
		Amount:    common.FromPaise(e.Amount),
	}, nil
}

func payoutUpdateFrom(event string, e payoutEntity) *payouts.ProcessorUpdate {
	upd := &payouts.ProcessorUpdate{
		Kind:         payouts.UpdateFailed,
		ProcessorRef: e.ID,
		ReferenceID:  e.ReferenceID,
		Event:        event,
	}
	if event == EventPayoutProcessed {
		upd.Kind = payouts.UpdateProcessed
	}
	if upd.ReferenceID == "" {
		upd.ReferenceID = decodeNotes(e.Notes)["payout_id"]
	}

	switch {
	case e.FailureReason != "":
		upd.Reason = e.FailureReason
	case e.StatusDetails != nil && e.StatusDetails.Description != "":
		upd.Reason = e.StatusDetails.Description
	}
	if upd.Kind == payouts.UpdateFailed && upd.Reason == "" {
		upd.Reason = event
	}
	upd.Reason = common.Truncate(upd.Reason, 500)
	return upd
}

// decodeNotes — у Razorpay пустые notes приходят массивом [], непустые объектом.
func decodeNotes(raw json.RawMessage) map[string]string {
	notes := map[string]string{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return notes
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return notes
	}
	for k, v := range generic {
		if s, ok := v.(string); ok {
			notes[k] = s
		}
	}
	return notes
}
