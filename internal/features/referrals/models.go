// Package referrals фиксирует покупки курсов и начисляет комиссию пригласившему.
package referrals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase — оплаченная покупка курса (из payment.captured / order.paid).
type Purchase struct {
	PaymentID string
	OrderID   string
	UserID    uuid.UUID
	CourseID  string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Commission — результат обработки покупки.
type Commission struct {
	ReferrerID uuid.UUID
	Amount     decimal.Decimal
	// Applied — начисление произошло сейчас (false — повтор того же платежа)
	Applied bool
}
