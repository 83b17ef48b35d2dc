// Package methods хранит способы выплаты пользователя: UPI или банковский счёт.
// У пользователя не больше одного способа по умолчанию.
package methods

import (
	"time"

	"github.com/google/uuid"
)

// Type — вид способа выплаты.
type Type string

const (
	TypeUPI  Type = "UPI"
	TypeBank Type = "BANK"
)

// Method — сохранённый способ выплаты.
type Method struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Type          Type
	UPIID         string
	AccountNumber string
	IFSCCode      string
	IsDefault     bool
	AddedAt       time.Time
}

// View — то, что отдаём наружу: номер счёта замаскирован.
type View struct {
	ID            uuid.UUID `json:"id"`
	Type          Type      `json:"method_type"`
	UPIID         string    `json:"upi_id,omitempty"`
	AccountNumber string    `json:"account_number,omitempty"`
	IFSCCode      string    `json:"ifsc_code,omitempty"`
	IsDefault     bool      `json:"is_default"`
	AddedAt       time.Time `json:"added_at"`
}

// View возвращает представление для API и сообщений оператору.
func (m *Method) View() View {
	return View{
		ID:            m.ID,
		Type:          m.Type,
		UPIID:         m.UPIID,
		AccountNumber: MaskAccount(m.AccountNumber),
		IFSCCode:      m.IFSCCode,
		IsDefault:     m.IsDefault,
		AddedAt:       m.AddedAt,
	}
}

// Describe — короткая строка для чата: "UPI alice@okaxis" или "BANK ••••6789 (HDFC0001234)".
func (m *Method) Describe() string {
	if m.Type == TypeUPI {
		return "UPI " + m.UPIID
	}
	return "BANK " + MaskAccount(m.AccountNumber) + " (" + m.IFSCCode + ")"
}

// MaskAccount оставляет последние 4 цифры.
func MaskAccount(account string) string {
	if len(account) <= 4 {
		return account
	}
	return "••••" + account[len(account)-4:]
}

// AddInput — тело POST /api/payout-methods.
type AddInput struct {
	Type          Type   `json:"method_type"`
	UPIID         string `json:"upi_id"`
	AccountNumber string `json:"account_number"`
	IFSCCode      string `json:"ifsc_code"`
}
