// Package wallet ведёт кошельки пользователей в рупиях.
// models.go описывает кошелёк, записи истории и тип операции.
package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxType — тип движения средств в wallet_transactions.
type TxType string

const (
	TxReferralCommission TxType = "referral_commission" // комиссия за приглашённого
	TxWithdrawal         TxType = "withdrawal"          // списание под выплату
	TxRefund             TxType = "refund"              // возврат неудавшейся выплаты
	TxAdjustment         TxType = "adjustment"          // ручная корректировка
)

// Wallet — баланс одного пользователя. У неизвестного пользователя баланс нулевой.
type Wallet struct {
	UserID         uuid.UUID       `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// Transaction — одна строка истории кошелька (всегда положительная сумма).
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Type        TxType          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Reference   *string         `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Entry — параметры одного начисления или списания.
// Reference делает операцию идемпотентной в пределах типа (id платежа, id выплаты).
type Entry struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Type        TxType
	Description string
	Reference   string
}

func (e Entry) reference() *string {
	if e.Reference == "" {
		return nil
	}
	return &e.Reference
}
