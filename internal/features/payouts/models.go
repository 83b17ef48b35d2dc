// Package payouts ведёт заявки на вывод средств и их расчёт:
// создание, отправку в процессор, подтверждение оператором и вебхуки процессора.
package payouts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status — статус заявки. Из pending переход ровно один.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Request — заявка на выплату.
type Request struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	PayoutMethodID uuid.UUID       `json:"payout_method_id"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	ProcessorRef   *string         `json:"razorpay_payout_id,omitempty"`
	FailureReason  *string         `json:"failure_reason,omitempty"`
	// WalletDebited — сумма уже списана с кошелька по этой заявке
	WalletDebited bool `json:"wallet_debited"`
}

// NewRequest — параметры создания заявки.
type NewRequest struct {
	UserID   uuid.UUID
	Amount   decimal.Decimal
	MethodID *uuid.UUID // nil — способ по умолчанию
}

// Outcome — результат RequestWithdrawal.
type Outcome struct {
	Success bool
	Message string
	Payout  *Request
}

// Settlement — результат перевода заявки в финальный статус.
type Settlement struct {
	Payout   *Request
	Debited  bool // списание произошло в этом вызове
	Refunded bool // возврат на кошелёк произошёл в этом вызове
	// WalletErr — статус уже финальный, но списание не удалось (частичный успех)
	WalletErr error
}

// UpdateKind — что сообщил процессор.
type UpdateKind int

const (
	UpdateProcessed UpdateKind = iota + 1
	UpdateFailed
)

// ProcessorUpdate — нормализованное событие процессора о выплате.
type ProcessorUpdate struct {
	Kind         UpdateKind
	ProcessorRef string // id выплаты у процессора
	ReferenceID  string // наш id заявки (reference_id / notes.payout_id)
	Reason       string
	Event        string
}
