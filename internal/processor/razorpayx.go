// Package processor отправляет выплаты во внешний процессор (RazorpayX).
// Используется составная выплата: контакт и fund account передаются
// прямо в теле POST /v1/payouts, без предварительной регистрации.
package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/razorpay/razorpay-go"
	log "github.com/sirupsen/logrus"
)

// Статусы выплаты RazorpayX, которые означают окончательный результат сразу в ответе.
const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// PayoutRequest — всё, что нужно процессору для одной выплаты.
type PayoutRequest struct {
	ReferenceID   string // id заявки, он же ключ идемпотентности
	UserID        string
	AmountPaise   int64
	Currency      string
	VPA           string // для UPI
	AccountNumber string // для банковского счёта
	IFSC          string
	HolderName    string
}

// Result — ответ процессора на создание выплаты.
type Result struct {
	ID            string
	Status        string
	FailureReason string
}

// Final сообщает, что выплата уже завершилась (успехом или отказом).
func (r *Result) Final() bool {
	switch r.Status {
	case StatusProcessed, StatusFailed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Succeeded — выплата проведена.
func (r *Result) Succeeded() bool { return r.Status == StatusProcessed }

// poster — часть razorpay-go, которой мы пользуемся (requests.Request).
type poster interface {
	Post(path string, payload map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayX создаёт выплаты через razorpay-go.
type RazorpayX struct {
	api           poster
	accountNumber string
}

var (
	clientOnce sync.Once
	sharedAPI  poster
)

// razorpayAPI возвращает razorpay.Request. NewClient записывает его в глобальную
// переменную пакета, поэтому клиент создаётся один раз на процесс: ключи первого вызова.
func razorpayAPI(keyID, keySecret string) poster {
	clientOnce.Do(func() {
		razorpay.NewClient(keyID, keySecret)
		sharedAPI = razorpay.Request
	})
	return sharedAPI
}

// NewRazorpayX создаёт клиента. accountNumber — номер счёта RazorpayX, с которого уходят деньги.
func NewRazorpayX(keyID, keySecret, accountNumber string) *RazorpayX {
	return &RazorpayX{api: razorpayAPI(keyID, keySecret), accountNumber: accountNumber}
}

// CreatePayout отправляет выплату. razorpay-go не принимает context,
// поэтому отмену проверяем только до отправки.
func (p *RazorpayX) CreatePayout(ctx context.Context, req PayoutRequest) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload := p.payload(req)
	headers := map[string]string{"X-Payout-Idempotency": req.ReferenceID}

	resp, err := p.api.Post("/v1/payouts", payload, headers)
	if err != nil {
		return nil, fmt.Errorf("razorpayx: %w", err)
	}

	res := &Result{
		ID:     stringField(resp, "id"),
		Status: strings.ToLower(stringField(resp, "status")),
	}
	if details, ok := resp["status_details"].(map[string]interface{}); ok {
		res.FailureReason = stringField(details, "description")
	}
	if res.FailureReason == "" {
		res.FailureReason = stringField(resp, "failure_reason")
	}
	if res.ID == "" {
		return nil, fmt.Errorf("razorpayx: в ответе нет id выплаты (status=%q)", res.Status)
	}

	log.WithFields(log.Fields{
		"payout_id":    req.ReferenceID,
		"processor_id": res.ID,
		"status":       res.Status,
	}).Info("RazorpayX принял выплату")
	return res, nil
}

func (p *RazorpayX) payload(req PayoutRequest) map[string]interface{} {
	contact := map[string]interface{}{
		"name":         holderName(req),
		"type":         "customer",
		"reference_id": req.UserID,
	}

	var fundAccount map[string]interface{}
	mode := "IMPS"
	if req.VPA != "" {
		mode = "UPI"
		fundAccount = map[string]interface{}{
			"account_type": "vpa",
			"vpa":          map[string]interface{}{"address": req.VPA},
			"contact":      contact,
		}
	} else {
		fundAccount = map[string]interface{}{
			"account_type": "bank_account",
			"bank_account": map[string]interface{}{
				"name":           holderName(req),
				"ifsc":           req.IFSC,
				"account_number": req.AccountNumber,
			},
			"contact": contact,
		}
	}

	return map[string]interface{}{
		"account_number":       p.accountNumber,
		"amount":               req.AmountPaise,
		"currency":             req.Currency,
		"mode":                 mode,
		"purpose":              "payout",
		"fund_account":         fundAccount,
		"queue_if_low_balance": true,
		"reference_id":         req.ReferenceID,
		"narration":            "Learn and Earn payout",
		"notes": map[string]interface{}{
			"payout_id": req.ReferenceID,
			"user_id":   req.UserID,
		},
	}
}

func holderName(req PayoutRequest) string {
	if req.HolderName != "" {
		return req.HolderName
	}
	return "Learner " + shortID(req.UserID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
