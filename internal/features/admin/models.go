// Package admin — журнал действий оператора и доступ к админскому API по ключу.
// models.go описывает запись журнала.
package admin

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Действия, которые попадают в журнал.
const (
	ActionConfirmPayout = "confirm_payout"
	ActionFailPayout    = "fail_payout"
)

// AuditEntry — одна запись admin_audit_log.
type AuditEntry struct {
	ID        int64               `json:"id"`
	Actor     string              `json:"actor"` // "tg:<user id>" или "admin-api"
	Action    string              `json:"action"`
	PayoutID  *uuid.UUID          `json:"payout_id,omitempty"`
	UserID    *uuid.UUID          `json:"user_id,omitempty"`
	Amount    decimal.NullDecimal `json:"amount"`
	Details   string              `json:"details"`
	CreatedAt time.Time           `json:"created_at"`
}

// TelegramActor — идентификатор оператора из поля message.from.id.
func TelegramActor(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

// APIActor — действие через админский HTTP API.
const APIActor = "admin-api"
