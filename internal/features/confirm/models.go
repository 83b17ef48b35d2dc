// Package confirm реализует двухшаговое подтверждение выплаты оператором:
// /confirm_payout <id> открывает сессию, YES <id> в течение TTL закрывает заявку.
package confirm

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session — снимок заявки в момент /confirm_payout. Одна сессия на заявку,
// повторный /confirm_payout заменяет её.
type Session struct {
	PayoutID       uuid.UUID
	UserID         uuid.UUID
	Amount         decimal.Decimal
	PayoutMethodID uuid.UUID
	OperatorID     int64
	RequestedAt    time.Time
	ExpiresAt      time.Time
}

// Expired сообщает, истекла ли сессия к моменту now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
